package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/pkg/db"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, error string) error
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic string, key string, message interface{}) error
}

type Option func(*OutboxProcessor)

func WithBatchSize(batchSize int) Option {
	return func(p *OutboxProcessor) {
		if batchSize > 0 {
			p.batchSize = batchSize
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(p *OutboxProcessor) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

type OutboxProcessor struct {
	db            db.TxBeginner
	repo          OutboxRepository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer
}

func NewOutboxProcessor(
	beginner db.TxBeginner,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
	opts ...Option,
) *OutboxProcessor {
	p := &OutboxProcessor{
		db:            beginner,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     50,
		interval:      500 * time.Millisecond,
		tracer:        otel.Tracer("outbox-worker"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		p.logger,
		"Starting outbox processor",
		zap.Int("batch_size", p.batchSize),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(
				ctx,
				p.logger,
				"Outbox processor stopping",
			)

			return
		case <-ticker.C:
			if _, err := p.processBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// processBatch returns how many events were published.
func (p *OutboxProcessor) processBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.processBatch")
	defer span.End()

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		mylogger.Error(
			ctx,
			p.logger,
			"Outbox worker failed to begin transaction",
			zap.Error(err),
		)

		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
				zap.String("method_name", "processBatch"),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Processing outbox events",
		zap.Int("count", len(events)),
	)

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"Outbox worker publish failed",
				zap.Int64("id", event.Id),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.Id, err.Error()); dbErr != nil {
				return published, fmt.Errorf("failed to mark event %d failed: %w", event.Id, dbErr)
			}

			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.Id); err != nil {
			return published, fmt.Errorf("failed to mark event %d published: %w", event.Id, err)
		}

		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *domain.OutboxEvent) error {
	var envelope domain.Envelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}

	envelope.EventID = event.Id

	return p.kafkaProducer.ProduceMessage(ctx, event.Topic, event.AggregateID, envelope)
}
