package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/ecommerce-orders/internal/transport/http/handler"
	"github.com/sakashimaa/ecommerce-orders/internal/transport/http/middleware"
	"github.com/sakashimaa/ecommerce-orders/pkg/metrics"
)

type Handlers struct {
	Order *handler.OrderHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, m *metrics.ServerMetrics, accessSecret string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", m.Handler())

	api := app.Group("/api", middleware.NewAuthMiddleware(accessSecret), middleware.NewIsActivatedMiddleware())

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("", h.Order.List)
	order.Get("/:id", h.Order.Get)
	order.Patch("/:id", h.Order.Update)
	order.Put("/:id", h.Order.Update)
}
