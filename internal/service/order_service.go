package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	"github.com/sakashimaa/ecommerce-orders/pkg/db"
	generalDomain "github.com/sakashimaa/ecommerce-orders/pkg/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/ecommerce-orders/pkg/outbox/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

type OrderService interface {
	CreateOrder(ctx context.Context, buyer domain.Buyer, input domain.OrderCreateInput) (*domain.Order, error)
	UpdateOrder(ctx context.Context, buyer domain.Buyer, orderID int64, input domain.OrderUpdateInput) (*domain.Order, error)
	GetOrder(ctx context.Context, buyer domain.Buyer, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, buyer domain.Buyer, limit, offset int64) ([]domain.Order, int64, error)
}

type orderService struct {
	db          db.TxBeginner
	logger      *zap.Logger
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	directory   Directory
	validator   OrderItemValidator
	topic       string
	tracer      trace.Tracer
}

func NewOrderService(
	beginner db.TxBeginner,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
	directory Directory,
	topic string,
) OrderService {
	return &orderService{
		db:          beginner,
		logger:      logger,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		directory:   directory,
		validator:   NewOrderItemValidator(),
		topic:       topic,
		tracer:      otel.Tracer("order_service"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, buyer domain.Buyer, input domain.OrderCreateInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("buyer_id", buyer.ID),
		attribute.Int("items_count", len(input.Items)),
	)

	status := input.Status.OrElse(domain.OrderStatusPending)
	if !status.IsValid() {
		return nil, invalidStatus(status)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	productIDs := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, tx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	order := &domain.Order{
		BuyerID: buyer.ID,
		Buyer:   buyer,
		Status:  status,
		Items:   make([]domain.OrderItem, 0, len(input.Items)),
	}

	for _, in := range input.Items {
		item, err := s.validator.Validate(domain.OrderItem{
			ProductID: in.ProductID,
			Product:   products[in.ProductID],
			Quantity:  in.Quantity,
		})
		if err != nil {
			mylogger.Info(
				ctx,
				s.logger,
				"Order item rejected",
				zap.Int64("buyer_id", buyer.ID),
				zap.Int64("product_id", in.ProductID),
				zap.Error(err),
			)

			return nil, err
		}

		order.Items = append(order.Items, item)
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to create order",
			zap.Int64("buyer_id", buyer.ID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID

		if err := s.orderRepo.CreateOrderItem(ctx, tx, &order.Items[i]); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := s.emitEvent(ctx, tx, generalDomain.EventOrderCreated, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to commit transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", buyer.ID),
	)

	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, buyer domain.Buyer, orderID int64, input domain.OrderUpdateInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("buyer_id", buyer.ID),
		attribute.Int64("order_id", orderID),
	)

	if input.Status.Set && !input.Status.Value.IsValid() {
		return nil, invalidStatus(input.Status.Value)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != buyer.ID {
		mylogger.Warn(
			ctx,
			s.logger,
			"Order belongs to another buyer",
			zap.Int64("order_id", orderID),
			zap.Int64("buyer_id", buyer.ID),
		)

		return nil, repository.ErrOrderNotFound
	}

	order.Buyer = buyer
	order.Status = input.Status.OrElse(order.Status)

	if err := s.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	items, err := s.orderRepo.ListItems(ctx, tx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	touched, err := applyItemPatches(items, input.Items.OrElse(nil))
	if err != nil {
		return nil, err
	}

	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, tx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	order.Items = items
	order.AttachProducts(products)

	for _, idx := range touched {
		item, err := s.validator.Validate(order.Items[idx])
		if err != nil {
			return nil, err
		}

		if err := s.orderRepo.UpdateItem(ctx, tx, &item); err != nil {
			return nil, fmt.Errorf("failed to update order item: %w", err)
		}

		order.Items[idx] = item
	}

	if err := s.emitEvent(ctx, tx, generalDomain.EventOrderUpdated, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to commit transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

// applyItemPatches merges patches into items in place and returns the
// indexes of the items it touched. A patch with an ID targets that item;
// otherwise it targets the item at its own position. Positional patches
// beyond the stored items are ignored.
func applyItemPatches(items []domain.OrderItem, patches []domain.OrderItemPatch) ([]int, error) {
	var touched []int
	seen := make(map[int]bool, len(patches))

	for pos, patch := range patches {
		idx := pos

		if patch.ID.Set {
			idx = indexOfItem(items, patch.ID.Value)
			if idx < 0 {
				return nil, domain.NewFieldError(
					"order_items",
					fmt.Sprintf("Invalid order item id \"%d\".", patch.ID.Value),
					repository.ErrOrderItemNotFound,
				)
			}
		} else if idx >= len(items) {
			continue
		}

		items[idx].ProductID = patch.ProductID.OrElse(items[idx].ProductID)
		items[idx].Quantity = patch.Quantity.OrElse(items[idx].Quantity)

		if !seen[idx] {
			seen[idx] = true
			touched = append(touched, idx)
		}
	}

	return touched, nil
}

func indexOfItem(items []domain.OrderItem, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}

	return -1
}

func (s *orderService) GetOrder(ctx context.Context, buyer domain.Buyer, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	tx, err := s.db.BeginTx(ctx, db.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != buyer.ID {
		return nil, repository.ErrOrderNotFound
	}

	order.Items, err = s.orderRepo.ListItems(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Buyer = buyer

	products, err := s.directory.GetProducts(ctx, order.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	order.AttachProducts(products)

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, buyer domain.Buyer, limit, offset int64) ([]domain.Order, int64, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	span.SetAttributes(
		attribute.Int64("buyer_id", buyer.ID),
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
	)

	tx, err := s.db.BeginTx(ctx, db.ReadOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	orders, total, err := s.orderRepo.ListByBuyer(ctx, tx, buyer.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	itemsByOrder, err := s.orderRepo.ListItemsByOrderIDs(ctx, tx, orderIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	seen := make(map[int64]struct{})
	var productIDs []int64
	for i := range orders {
		orders[i].Buyer = buyer
		orders[i].Items = itemsByOrder[orders[i].ID]

		for _, id := range orders[i].ProductIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				productIDs = append(productIDs, id)
			}
		}
	}

	products, err := s.directory.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load products: %w", err)
	}

	for i := range orders {
		orders[i].AttachProducts(products)
	}

	return orders, total, nil
}

func (s *orderService) emitEvent(ctx context.Context, tx pgx.Tx, eventType string, order *domain.Order) error {
	items := make([]generalDomain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = generalDomain.OrderItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price(),
		}
	}

	event, err := outboxDomain.NewOutboxEvent(
		"Order",
		strconv.FormatInt(order.ID, 10),
		eventType,
		s.topic,
		generalDomain.OrderEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			Status:     string(order.Status),
			Items:      items,
			OccurredAt: time.Now().UTC(),
		},
	)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to save outbox event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func (s *orderService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			shutdownCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}

func invalidStatus(status domain.OrderStatus) error {
	return domain.NewFieldError(
		"status",
		fmt.Sprintf("\"%s\" is not a valid choice.", status),
		nil,
	)
}
