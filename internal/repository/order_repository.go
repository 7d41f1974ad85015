package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	CreateOrderItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error
	GetByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error)
	LockByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error)
	ListByBuyer(ctx context.Context, tx pgx.Tx, buyerID int64, limit, offset int64) ([]domain.Order, int64, error)
	ListItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]domain.OrderItem, error)
	ListItemsByOrderIDs(ctx context.Context, tx pgx.Tx, orderIDs []int64) (map[int64][]domain.OrderItem, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	UpdateItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error
}

type orderRepo struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(logger *zap.Logger) OrderRepository {
	return &orderRepo{
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("buyer_id", order.BuyerID),
		attribute.String("status", string(order.Status)),
	)

	query := `
		INSERT INTO orders (buyer_id, status, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		order.BuyerID,
		string(order.Status),
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Int64("buyer_id", order.BuyerID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (r *orderRepo) CreateOrderItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrderItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", item.OrderID),
		attribute.Int64("product_id", item.ProductID),
		attribute.Int("quantity", int(item.Quantity)),
	)

	query := `
		INSERT INTO order_items (order_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		item.OrderID,
		item.ProductID,
		item.Quantity,
	).Scan(
		&item.ID,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert item",
			zap.Int64("order_id", item.OrderID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order item: %w", err)
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		SELECT id, buyer_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	return r.getOne(ctx, span, tx, query, orderID)
}

func (r *orderRepo) LockByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.LockByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		SELECT id, buyer_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`

	return r.getOne(ctx, span, tx, query, orderID)
}

func (r *orderRepo) getOne(ctx context.Context, span trace.Span, tx pgx.Tx, query string, orderID int64) (*domain.Order, error) {
	var order domain.Order
	if err := tx.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.BuyerID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return &order, nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, tx pgx.Tx, buyerID int64, limit, offset int64) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByBuyer")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("buyer_id", buyerID),
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
	)

	query := `
		SELECT id, buyer_id, status, created_at, updated_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := tx.Query(ctx, query, buyerID, limit, offset)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query orders",
			zap.Int64("buyer_id", buyerID),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.Order])
	if err != nil {
		span.RecordError(err)

		return nil, 0, fmt.Errorf("failed to collect orders: %w", err)
	}

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE buyer_id = $1`, buyerID).Scan(&total); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to count orders",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepo) ListItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]domain.OrderItem, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		SELECT id, order_id, product_id, quantity, created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := tx.Query(ctx, query, orderID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order_items",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.OrderItem])
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to scan order_items",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to scan order items: %w", err)
	}

	return items, nil
}

func (r *orderRepo) ListItemsByOrderIDs(ctx context.Context, tx pgx.Tx, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListItemsByOrderIDs")
	defer span.End()

	span.SetAttributes(
		attribute.Int("orders_count", len(orderIDs)),
	)

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, order_id, product_id, quantity, created_at, updated_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id ASC
	`

	rows, err := tx.Query(ctx, query, orderIDs)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.OrderItem])
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to scan order items: %w", err)
	}

	for _, item := range items {
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	return result, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.String("status", string(order.Status)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`

	if err := tx.QueryRow(ctx, query, string(order.Status), order.ID).Scan(&order.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order not found",
				zap.Int64("order_id", order.ID),
			)

			return ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

func (r *orderRepo) UpdateItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", item.ID),
		attribute.Int64("product_id", item.ProductID),
		attribute.Int("quantity", int(item.Quantity)),
	)

	query := `
		UPDATE order_items
		SET product_id = $1, quantity = $2, updated_at = NOW()
		WHERE id = $3 AND order_id = $4
		RETURNING updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		item.ProductID,
		item.Quantity,
		item.ID,
		item.OrderID,
	).Scan(&item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderItemNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order item",
			zap.Int64("item_id", item.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order item: %w", err)
	}

	return nil
}
