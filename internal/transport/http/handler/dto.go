package handler

import (
	"time"

	"github.com/sakashimaa/ecommerce-orders/internal/domain"
)

// Request bodies never carry a buyer; any "buyer" key is dropped by the
// decoder.

type OrderItemRequest struct {
	Product  *int64 `json:"product" validate:"required,gt=0"`
	Quantity *int32 `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Status     *string            `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	OrderItems []OrderItemRequest `json:"order_items" validate:"required,min=1,dive"`
}

func (r *CreateOrderRequest) ToInput() domain.OrderCreateInput {
	items := make([]domain.OrderItemInput, len(r.OrderItems))
	for i, item := range r.OrderItems {
		items[i] = domain.OrderItemInput{
			ProductID: *item.Product,
			Quantity:  *item.Quantity,
		}
	}

	return domain.OrderCreateInput{
		Status: statusFromPtr(r.Status),
		Items:  items,
	}
}

type OrderItemPatchRequest struct {
	ID       *int64 `json:"id" validate:"omitempty,gt=0"`
	Product  *int64 `json:"product" validate:"omitempty,gt=0"`
	Quantity *int32 `json:"quantity" validate:"omitempty,gt=0"`
}

type UpdateOrderRequest struct {
	Status     *string                 `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	OrderItems []OrderItemPatchRequest `json:"order_items" validate:"dive"`
}

func (r *UpdateOrderRequest) ToInput() domain.OrderUpdateInput {
	input := domain.OrderUpdateInput{
		Status: statusFromPtr(r.Status),
	}

	// An explicit empty list is kept apart from an absent one.
	if r.OrderItems != nil {
		patches := make([]domain.OrderItemPatch, len(r.OrderItems))
		for i, item := range r.OrderItems {
			patches[i] = domain.OrderItemPatch{
				ID:        domain.FromPtr(item.ID),
				ProductID: domain.FromPtr(item.Product),
				Quantity:  domain.FromPtr(item.Quantity),
			}
		}
		input.Items = domain.Some(patches)
	}

	return input
}

func statusFromPtr(status *string) domain.Optional[domain.OrderStatus] {
	if status == nil {
		return domain.None[domain.OrderStatus]()
	}

	return domain.Some(domain.OrderStatus(*status))
}

type OrderItemResponse struct {
	ID        int64     `json:"id"`
	Order     int64     `json:"order"`
	Product   int64     `json:"product"`
	Quantity  int32     `json:"quantity"`
	Price     string    `json:"price"`
	Cost      string    `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrderItemResponse renders price and cost from the product's current
// price.
func NewOrderItemResponse(item *domain.OrderItem) OrderItemResponse {
	return OrderItemResponse{
		ID:        item.ID,
		Order:     item.OrderID,
		Product:   item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price().StringFixed(2),
		Cost:      item.Cost().StringFixed(2),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

type OrderResponse struct {
	ID         int64               `json:"id"`
	Buyer      string              `json:"buyer"`
	OrderItems []OrderItemResponse `json:"order_items"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func NewOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i := range order.Items {
		items[i] = NewOrderItemResponse(&order.Items[i])
	}

	return OrderResponse{
		ID:         order.ID,
		Buyer:      order.Buyer.FullName(),
		OrderItems: items,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

type OrderListResponse struct {
	Count   int64           `json:"count"`
	Results []OrderResponse `json:"results"`
}
