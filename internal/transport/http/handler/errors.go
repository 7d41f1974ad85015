package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
)

var errMissingPrincipal = errors.New("missing authenticated user")

// ErrorStatus maps service errors to an HTTP status and response body.
func ErrorStatus(err error) (int, any) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, validationErr.Fields
	case errors.Is(err, repository.ErrOrderNotFound):
		return fiber.StatusNotFound, fiber.Map{"detail": "Not found."}
	case errors.Is(err, errMissingPrincipal), errors.Is(err, repository.ErrUserNotFound):
		return fiber.StatusUnauthorized, fiber.Map{"error": "Unauthorized: unknown user"}
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, fiber.Map{"error": "request timed out"}
	default:
		return fiber.StatusInternalServerError, fiber.Map{"error": "internal error"}
	}
}
