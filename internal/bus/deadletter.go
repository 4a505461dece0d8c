package bus

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/deadletter"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// DeadLetterHandler persists undeliverable events and republishes them, with
// failure metadata attached, to the consumer's dead-letter topic for offline
// inspection and replay. Its own failures are logged, never raised: the main
// consumer pipeline must not see them.
type DeadLetterHandler struct {
	consumer string
	topic    string
	repo     deadletter.Repository
	producer Producer
	logger   *slog.Logger
}

func NewDeadLetterHandler(consumer, topic string, repo deadletter.Repository, producer Producer, logger *slog.Logger) *DeadLetterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterHandler{
		consumer: consumer,
		topic:    topic,
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

func (h *DeadLetterHandler) Escalate(ctx context.Context, msg kafka.Message, env *event.Envelope, attempts int, errType string, cause error) {
	rec := &deadletter.Record{
		ID:            uuid.New().String(),
		EventID:       env.ID,
		EventType:     string(env.Type),
		Consumer:      h.consumer,
		OriginalTopic: msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		EventData:     msg.Value,
		ErrorMessage:  cause.Error(),
		ErrorType:     errType,
		RetryCount:    attempts,
		Status:        deadletter.StatusFailed,
		FailedAt:      time.Now(),
	}

	if err := h.repo.Create(ctx, rec); err != nil {
		h.logger.Error("failed to persist dead letter",
			"event_id", env.ID, "consumer", h.consumer, "error", err)
	}

	// Republish the original envelope unmodified apart from failure metadata.
	dead := *env
	dead.Metadata = map[string]string{}
	for k, v := range env.Metadata {
		dead.Metadata[k] = v
	}
	dead.Metadata["failure_reason"] = cause.Error()
	dead.Metadata["failure_type"] = errType
	dead.Metadata["failed_consumer"] = h.consumer
	dead.Metadata["retry_count"] = strconv.Itoa(attempts)

	value, err := event.Marshal(&dead)
	if err != nil {
		h.logger.Error("failed to marshal dead letter", "event_id", env.ID, "error", err)
		return
	}

	if err := h.producer.SendMessageTo(ctx, h.topic, env.Key(), value); err != nil {
		h.logger.Error("failed to republish dead letter",
			"event_id", env.ID, "topic", h.topic, "error", err)
		return
	}

	h.logger.Warn("event dead-lettered",
		"event_id", env.ID, "event_type", env.Type, "topic", h.topic,
		"retries", attempts, "error", cause)
}
