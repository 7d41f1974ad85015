package domain

// The write inputs carry no buyer: the buyer is always passed separately
// from the authenticated caller.

type OrderItemInput struct {
	ProductID int64
	Quantity  int32
}

type OrderCreateInput struct {
	Status Optional[OrderStatus]
	Items  []OrderItemInput
}

// OrderItemPatch targets an existing item by ID when set, otherwise by its
// position in the stored item list.
type OrderItemPatch struct {
	ID        Optional[int64]
	ProductID Optional[int64]
	Quantity  Optional[int32]
}

type OrderUpdateInput struct {
	Status Optional[OrderStatus]
	Items  Optional[[]OrderItemPatch]
}
