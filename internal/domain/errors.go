package domain

import (
	"errors"
	"sort"
	"strings"
)

const StockExceededMessage = "Ordered quantity is more than the stock."

var ErrStockExceeded = errors.New("ordered quantity is more than the stock")

// ValidationError is a field-keyed set of user-facing messages.
type ValidationError struct {
	Fields map[string][]string
	cause  error
}

func NewFieldError(field, message string, cause error) *ValidationError {
	return &ValidationError{
		Fields: map[string][]string{field: {message}},
		cause:  cause,
	}
}

func NewStockExceededError() *ValidationError {
	return NewFieldError("quantity", StockExceededMessage, ErrStockExceeded)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}
