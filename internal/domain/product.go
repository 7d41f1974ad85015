package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the local read model of a catalog entry.
type Product struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int64           `db:"stock_quantity" json:"stock_quantity"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
