package service

import (
	"fmt"

	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
)

type OrderItemValidator interface {
	// Validate accepts item unchanged or rejects it. item.Product must be
	// the current catalog state of item.ProductID.
	Validate(item domain.OrderItem) (domain.OrderItem, error)
}

type stockValidator struct{}

func NewOrderItemValidator() OrderItemValidator {
	return stockValidator{}
}

func (stockValidator) Validate(item domain.OrderItem) (domain.OrderItem, error) {
	if item.Product == nil || item.Product.ID != item.ProductID {
		return item, productNotFound(item.ProductID)
	}

	if int64(item.Quantity) > item.Product.Quantity {
		return item, domain.NewStockExceededError()
	}

	return item, nil
}

func productNotFound(productID int64) error {
	return domain.NewFieldError(
		"product",
		fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", productID),
		repository.ErrProductNotFound,
	)
}
