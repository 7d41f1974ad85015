package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

type Order struct {
	ID      int64       `db:"id"`
	BuyerID int64       `db:"buyer_id"`
	Buyer   Buyer       `db:"-"`
	Status  OrderStatus `db:"status"`
	Items   []OrderItem `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderItem does not store a price: it always reflects the product's
// current price.
type OrderItem struct {
	ID        int64    `db:"id"`
	OrderID   int64    `db:"order_id"`
	ProductID int64    `db:"product_id"`
	Product   *Product `db:"-"`
	Quantity  int32    `db:"quantity"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (i *OrderItem) Price() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}

	return i.Product.Price
}

func (i *OrderItem) Cost() decimal.Decimal {
	return i.Price().Mul(decimal.NewFromInt32(i.Quantity))
}

func (o *Order) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))

	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids
}

// AttachProducts links every item to its product from products.
func (o *Order) AttachProducts(products map[int64]*Product) {
	for i := range o.Items {
		o.Items[i].Product = products[o.Items[i].ProductID]
	}
}
