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

type UserRepository interface {
	GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Buyer, error)
	Upsert(ctx context.Context, tx pgx.Tx, buyer *domain.Buyer) error
}

type userRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewUserRepository(logger *zap.Logger) UserRepository {
	return &userRepo{
		logger: logger,
		tracer: otel.Tracer("user_repository"),
	}
}

func (r *userRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Buyer, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", id),
	)

	query := `
		SELECT id, email, first_name, last_name
		FROM users
		WHERE id = $1
	`

	var buyer domain.Buyer
	if err := tx.QueryRow(ctx, query, id).Scan(
		&buyer.ID,
		&buyer.Email,
		&buyer.FirstName,
		&buyer.LastName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get user by id",
			zap.Int64("user_id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting user: %w", err)
	}

	return &buyer, nil
}

func (r *userRepo) Upsert(ctx context.Context, tx pgx.Tx, buyer *domain.Buyer) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", buyer.ID),
	)

	query := `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()
	`

	if _, err := tx.Exec(ctx, query, buyer.ID, buyer.Email, buyer.FirstName, buyer.LastName); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error inserting into users",
			zap.Int64("user_id", buyer.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error upserting user: %w", err)
	}

	return nil
}
