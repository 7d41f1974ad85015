package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxEvent struct {
	Id            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// Envelope is the wire shape of every published event.
type Envelope struct {
	Event   string          `json:"event"`
	EventID int64           `json:"event_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func NewOutboxEvent(aggregateType, aggregateID, eventType, topic string, payload any) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope, err := json.Marshal(Envelope{
		Event:   eventType,
		Payload: payloadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       envelope,
		Topic:         topic,
	}, nil
}
