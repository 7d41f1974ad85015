package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	GetByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Product, error)
	Upsert(ctx context.Context, tx pgx.Tx, product *domain.Product) error
}

type productRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(logger *zap.Logger) ProductRepository {
	return &productRepo{
		logger: logger,
		tracer: otel.Tracer("contract/product_repo"),
	}
}

// GetByIDs returns the products found; missing ids are simply absent from
// the result.
func (r *productRepo) GetByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByIDs")
	defer span.End()

	span.SetAttributes(
		attribute.Int64Slice("ids", ids),
	)

	result := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, name, price, stock_quantity, updated_at
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting products",
			zap.Int64s("ids", ids),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting products: %w", err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.Product])
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to scan rows",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	for _, p := range products {
		result[p.ID] = p
	}

	return result, nil
}

func (r *productRepo) Upsert(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", product.ID),
		attribute.String("name", product.Name),
	)

	query := `
		INSERT INTO products (id, name, price, stock_quantity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity,
			updated_at = NOW()
		RETURNING updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.Quantity,
	).Scan(&product.UpdatedAt); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error upserting product",
			zap.Int64("id", product.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error upserting product: %w", err)
	}

	return nil
}
