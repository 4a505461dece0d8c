package deadletter

import (
	"context"
	"time"
)

const (
	StatusFailed   = "FAILED"
	StatusResolved = "RESOLVED"
)

// Record captures an event whose processing failed after exhausting the
// consumer's retry budget. Records are append-only; resolution is an
// administrative step, the original envelope is never mutated.
type Record struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Consumer      string    `json:"consumer"`
	OriginalTopic string    `json:"original_topic"`
	Partition     int       `json:"partition"`
	Offset        int64     `json:"offset"`
	EventData     []byte    `json:"event_data"`
	ErrorMessage  string    `json:"error_message"`
	ErrorType     string    `json:"error_type"`
	RetryCount    int       `json:"retry_count"`
	Status        string    `json:"status"`
	FailedAt      time.Time `json:"failed_at"`
	ResolvedAt    time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    string    `json:"resolved_by,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*Record, error)
	Resolve(ctx context.Context, id, resolvedBy string) error
}
