package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/service"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"github.com/sakashimaa/ecommerce-orders/pkg/utils"
	"go.uber.org/zap"
)

type OrderHandler struct {
	service   service.OrderService
	directory service.Directory
	validate  *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

func NewOrderHandler(
	orderService service.OrderService,
	directory service.Directory,
	logger *zap.Logger,
	timeout time.Duration,
) *OrderHandler {
	return &OrderHandler{
		service:   orderService,
		directory: directory,
		validate:  utils.NewValidator(),
		logger:    logger,
		timeout:   timeout,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(CreateOrderRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to parse body in create",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			utils.NonFieldErrorsKey: []string{"Invalid JSON body."},
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.FormatValidationError(err))
	}

	buyer, err := h.buyer(ctx, c)
	if err != nil {
		return h.fail(ctx, c, "resolve buyer", err)
	}

	order, err := h.service.CreateOrder(ctx, *buyer, input.ToInput())
	if err != nil {
		return h.fail(ctx, c, "create order", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"create order succeeded",
		zap.Int64("created_id", order.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(NewOrderResponse(order))
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	orderID, err := h.orderID(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Not found."})
	}

	input := new(UpdateOrderRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to parse body in update",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			utils.NonFieldErrorsKey: []string{"Invalid JSON body."},
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.FormatValidationError(err))
	}

	buyer, err := h.buyer(ctx, c)
	if err != nil {
		return h.fail(ctx, c, "resolve buyer", err)
	}

	order, err := h.service.UpdateOrder(ctx, *buyer, orderID, input.ToInput())
	if err != nil {
		return h.fail(ctx, c, "update order", err)
	}

	return c.JSON(NewOrderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	orderID, err := h.orderID(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Not found."})
	}

	buyer, err := h.buyer(ctx, c)
	if err != nil {
		return h.fail(ctx, c, "resolve buyer", err)
	}

	order, err := h.service.GetOrder(ctx, *buyer, orderID)
	if err != nil {
		return h.fail(ctx, c, "get order", err)
	}

	return c.JSON(NewOrderResponse(order))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	limit := int64(c.QueryInt("limit", service.DefaultListLimit))
	offset := int64(c.QueryInt("offset", 0))

	buyer, err := h.buyer(ctx, c)
	if err != nil {
		return h.fail(ctx, c, "resolve buyer", err)
	}

	orders, total, err := h.service.ListOrders(ctx, *buyer, limit, offset)
	if err != nil {
		return h.fail(ctx, c, "list orders", err)
	}

	results := make([]OrderResponse, len(orders))
	for i := range orders {
		results[i] = NewOrderResponse(&orders[i])
	}

	return c.JSON(OrderListResponse{
		Count:   total,
		Results: results,
	})
}

// buyer resolves the authenticated principal. It is the only source of the
// order's owner.
func (h *OrderHandler) buyer(ctx context.Context, c *fiber.Ctx) (*domain.Buyer, error) {
	userId, ok := c.Locals("userId").(int64)
	if !ok {
		mylogger.Info(
			ctx,
			h.logger,
			"user_id get failed",
		)

		return nil, errMissingPrincipal
	}

	return h.directory.GetBuyer(ctx, userId)
}

func (h *OrderHandler) orderID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func (h *OrderHandler) fail(ctx context.Context, c *fiber.Ctx, op string, err error) error {
	httpCode, body := ErrorStatus(err)

	if httpCode >= fiber.StatusInternalServerError {
		mylogger.Error(
			ctx,
			h.logger,
			op+" failed",
			zap.Int("http_code", httpCode),
			zap.Error(err),
		)
	} else {
		mylogger.Warn(
			ctx,
			h.logger,
			op+" failed",
			zap.Int("http_code", httpCode),
			zap.Error(err),
		)
	}

	return c.Status(httpCode).JSON(body)
}
