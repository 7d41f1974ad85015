package inbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// EventRef identifies an incoming event. IDs are only unique per source,
// since every producer numbers its own outbox.
type EventRef struct {
	Source string
	ID     int64
}

func (r EventRef) IsZero() bool {
	return r.ID <= 0
}

// MarkProcessed records ref inside tx and reports whether it was seen for
// the first time. The mark is only durable if tx commits, so callers apply
// the event's side effects in the same transaction.
func MarkProcessed(ctx context.Context, tx pgx.Tx, logger *zap.Logger, ref EventRef) (bool, error) {
	query := `
		INSERT INTO processed_events (source, event_id)
		VALUES ($1, $2)
		ON CONFLICT (source, event_id) DO NOTHING
	`

	commandTag, err := tx.Exec(ctx, query, ref.Source, ref.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s/%d processed: %w", ref.Source, ref.ID, err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Info(
			ctx,
			logger,
			"Event already processed, skipping",
			zap.String("source", ref.Source),
			zap.Int64("event_id", ref.ID),
		)

		return false, nil
	}

	return true, nil
}
