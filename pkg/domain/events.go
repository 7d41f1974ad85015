package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventUserRegistered = "UserRegistered"
	EventProductCreated = "ProductCreated"
	EventProductUpdated = "ProductUpdated"
	EventOrderCreated   = "OrderCreated"
	EventOrderUpdated   = "OrderUpdated"
)

type UserRegisteredEvent struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProductChangedEvent carries the full catalog state of a product.
type ProductChangedEvent struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int64           `json:"stock_quantity"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderEvent struct {
	OrderID    int64       `json:"order_id"`
	BuyerID    int64       `json:"buyer_id"`
	Status     string      `json:"status"`
	Items      []OrderItem `json:"items"`
	OccurredAt time.Time   `json:"occurred_at"`
}
