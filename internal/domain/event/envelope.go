package event

import (
	"encoding/json"
	"time"
)

// SchemaVersion tags the current envelope layout for forward compatibility.
const SchemaVersion = "1"

// Aggregate types carried in the envelope.
const (
	AggregateTransaction = "TRANSACTION"
	AggregatePayment     = "PAYMENT"
	AggregateDispensing  = "DISPENSING"
	AggregateProduct     = "PRODUCT"
)

// Type identifies the kind of a domain event on the wire.
type Type string

const (
	TypePaymentRequested     Type = "PAYMENT_REQUESTED"
	TypePaymentCompleted     Type = "PAYMENT_COMPLETED"
	TypePaymentFailed        Type = "PAYMENT_FAILED"
	TypeDispensingRequested  Type = "DISPENSING_REQUESTED"
	TypeDispensingCompleted  Type = "DISPENSING_COMPLETED"
	TypeDispensingFailed     Type = "DISPENSING_FAILED"
	TypeTransactionCompleted Type = "TRANSACTION_COMPLETED"
	TypeTransactionFailed    Type = "TRANSACTION_FAILED"
	TypeTransactionCancelled Type = "TRANSACTION_CANCELLED"
	TypeRefundRequested      Type = "REFUND_REQUESTED"
	TypeProductOutOfStock    Type = "PRODUCT_OUT_OF_STOCK"
)

// Envelope is the wire format published to the shared events topic.
// It is immutable after publication; Payload is raw JSON interpreted per Type.
type Envelope struct {
	ID            string            `json:"event_id"`
	Type          Type              `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Version       string            `json:"version"`
}

// Key returns the partition/ordering key: the correlation id when present,
// so all events of one saga share a partition, otherwise the event type.
func (e *Envelope) Key() []byte {
	if e.CorrelationID != "" {
		return []byte(e.CorrelationID)
	}
	return []byte(e.Type)
}

// Meta returns a metadata value, tolerating a nil map.
func (e *Envelope) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
