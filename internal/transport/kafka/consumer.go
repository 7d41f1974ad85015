package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/ecommerce-orders/internal/service"
	generalDomain "github.com/sakashimaa/ecommerce-orders/pkg/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/kafka"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/ecommerce-orders/pkg/outbox/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/inbox"
	"go.uber.org/zap"
)

type Consumer struct {
	service service.SyncService
	logger  *zap.Logger
}

func NewConsumer(service service.SyncService, logger *zap.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string, topics []string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		topics,
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

// processMessage returns an error only when a retry could succeed.
// Undecodable messages are logged and skipped.
func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	var envelope outboxDomain.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling envelope", zap.Error(err))
		return nil
	}

	ref := inbox.EventRef{Source: msg.Topic, ID: envelope.EventID}

	switch envelope.Event {
	case generalDomain.EventUserRegistered:
		var event generalDomain.UserRegisteredEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal event", zap.Error(err))
			return nil
		}

		if err := c.service.HandleUserRegistered(ctx, ref, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to handle register event", zap.Error(err))
			return err
		}
	case generalDomain.EventProductCreated, generalDomain.EventProductUpdated:
		var event generalDomain.ProductChangedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal event", zap.Error(err))
			return nil
		}

		if err := c.service.HandleProductChanged(ctx, ref, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to handle product event", zap.Error(err))
			return err
		}
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
	}

	return nil
}
