package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
)

// Producer is the slice of the Kafka producer the publisher needs.
type Producer interface {
	SendMessage(ctx context.Context, key, value []byte) error
	SendMessageTo(ctx context.Context, topic string, key, value []byte) error
	GetTopic() string
}

// Publisher serializes envelopes onto the shared events topic. It does not
// retry: redelivery is the outbox relay's job, and a failed publish leaves
// the outbox row claimable again.
type Publisher struct {
	producer Producer
	logger   *slog.Logger
}

func NewPublisher(producer Producer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{producer: producer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, env *event.Envelope) error {
	value, err := event.Marshal(env)
	if err != nil {
		publishErrors.Inc()
		return fmt.Errorf("marshal envelope %s: %w", env.ID, err)
	}

	if err := p.producer.SendMessage(ctx, env.Key(), value); err != nil {
		publishErrors.Inc()
		p.logger.Error("publish failed", "event_id", env.ID, "event_type", env.Type, "error", err)
		return fmt.Errorf("publish %s: %w", env.ID, err)
	}

	eventsPublished.Inc()
	p.logger.Info("event published",
		"event_id", env.ID, "event_type", env.Type, "correlation_id", env.CorrelationID)
	return nil
}
