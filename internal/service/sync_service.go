package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	"github.com/sakashimaa/ecommerce-orders/pkg/db"
	generalDomain "github.com/sakashimaa/ecommerce-orders/pkg/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/inbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SyncService keeps the local buyer and product read models in step with
// the services that own them.
type SyncService interface {
	HandleUserRegistered(ctx context.Context, ref inbox.EventRef, event *generalDomain.UserRegisteredEvent) error
	HandleProductChanged(ctx context.Context, ref inbox.EventRef, event *generalDomain.ProductChangedEvent) error
}

type syncService struct {
	db          db.TxBeginner
	logger      *zap.Logger
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	cache       CacheInvalidator
	tracer      trace.Tracer
}

func NewSyncService(
	beginner db.TxBeginner,
	logger *zap.Logger,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	cache CacheInvalidator,
) SyncService {
	return &syncService{
		db:          beginner,
		logger:      logger,
		userRepo:    userRepo,
		productRepo: productRepo,
		cache:       cache,
		tracer:      otel.Tracer("sync_service"),
	}
}

func (s *syncService) HandleUserRegistered(ctx context.Context, ref inbox.EventRef, event *generalDomain.UserRegisteredEvent) error {
	ctx, span := s.tracer.Start(ctx, "SyncService.HandleUserRegistered")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", event.UserID),
		attribute.Int64("event_id", ref.ID),
	)

	if event.UserID <= 0 {
		return fmt.Errorf("invalid user id %d", event.UserID)
	}

	applied, err := s.once(ctx, ref, func(tx pgx.Tx) error {
		return s.userRepo.Upsert(ctx, tx, &domain.Buyer{
			ID:        event.UserID,
			Email:     event.Email,
			FirstName: event.FirstName,
			LastName:  event.LastName,
		})
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to save user",
			zap.Error(err),
		)

		return err
	}

	if applied {
		s.cache.InvalidateBuyer(ctx, event.UserID)

		mylogger.Info(
			ctx,
			s.logger,
			"User saved successfully",
			zap.Int64("user_id", event.UserID),
		)
	}

	return nil
}

func (s *syncService) HandleProductChanged(ctx context.Context, ref inbox.EventRef, event *generalDomain.ProductChangedEvent) error {
	ctx, span := s.tracer.Start(ctx, "SyncService.HandleProductChanged")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", event.ProductID),
		attribute.Int64("event_id", ref.ID),
	)

	if event.ProductID <= 0 {
		return fmt.Errorf("invalid product id %d", event.ProductID)
	}

	applied, err := s.once(ctx, ref, func(tx pgx.Tx) error {
		return s.productRepo.Upsert(ctx, tx, &domain.Product{
			ID:       event.ProductID,
			Name:     event.Name,
			Price:    event.Price,
			Quantity: event.StockQuantity,
		})
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to save product",
			zap.Error(err),
		)

		return err
	}

	if applied {
		s.cache.InvalidateProduct(ctx, event.ProductID)
	}

	return nil
}

// once runs fn in a transaction that also records ref. Events without an id
// are always applied. It reports whether fn ran.
func (s *syncService) once(ctx context.Context, ref inbox.EventRef, fn func(tx pgx.Tx) error) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				shutdownCtx,
				s.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	if !ref.IsZero() {
		fresh, err := inbox.MarkProcessed(ctx, tx, s.logger, ref)
		if err != nil {
			return false, err
		}

		if !fresh {
			return false, nil
		}
	}

	if err := fn(tx); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}
