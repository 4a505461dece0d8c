package inbox

import (
	"context"
	"time"
)

// Event is a consumer-side idempotency record (Inbox pattern). The key is
// scoped per consumer: the same event is legitimately processed once by each
// consuming service, so dedup must never be global.
type Event struct {
	Consumer      string    `json:"consumer"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Store interface {
	// MarkIfNew records the event as applied by the consumer. It must run on
	// the same transaction as the handler's own writes (tx taken from ctx).
	// Returns true if the event is new, false if it was already applied.
	MarkIfNew(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*Event, error)
}
