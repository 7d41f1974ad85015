package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	"github.com/sakashimaa/ecommerce-orders/pkg/db"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Directory serves read-side lookups of buyers and products.
type Directory interface {
	GetBuyer(ctx context.Context, id int64) (*domain.Buyer, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type directory struct {
	db          db.TxBeginner
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewDirectory(
	beginner db.TxBeginner,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	logger *zap.Logger,
) Directory {
	return &directory{
		db:          beginner,
		userRepo:    userRepo,
		productRepo: productRepo,
		logger:      logger,
		tracer:      otel.Tracer("directory"),
	}
}

func (d *directory) GetBuyer(ctx context.Context, id int64) (*domain.Buyer, error) {
	ctx, span := d.tracer.Start(ctx, "Directory.GetBuyer")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", id),
	)

	var buyer *domain.Buyer
	err := d.readOnly(ctx, func(tx pgx.Tx) error {
		var err error
		buyer, err = d.userRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			span.RecordError(err)
		}

		return nil, err
	}

	return buyer, nil
}

func (d *directory) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	ctx, span := d.tracer.Start(ctx, "Directory.GetProducts")
	defer span.End()

	span.SetAttributes(
		attribute.Int("ids_count", len(ids)),
	)

	var products map[int64]*domain.Product
	err := d.readOnly(ctx, func(tx pgx.Tx) error {
		var err error
		products, err = d.productRepo.GetByIDs(ctx, tx, ids)
		return err
	})
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	return products, nil
}

func (d *directory) readOnly(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, db.ReadOnly)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, d.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
