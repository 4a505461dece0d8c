package transaction

import (
	"context"
	"time"
)

// Status is the saga state of a purchase. FAILED, CANCELLED and COMPLETED are
// terminal; no transition ever moves a transaction backward.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// transitions is the closed set of legal status moves.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal saga move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Line is one purchased product with its price snapshotted at creation time,
// so the saga stays consistent even if the catalog changes mid-flight.
type Line struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Transaction struct {
	ID            string    `json:"id"`
	Lines         []Line    `json:"lines"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMethod string    `json:"payment_method"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	// UpdateStatusIf applies a guarded transition: the update only lands if the
	// row is still in the expected status. Returns false when the guard lost,
	// which callers treat as a stale/out-of-order event.
	UpdateStatusIf(ctx context.Context, id string, from, to Status, reason string) (bool, error)
	// ListStuck returns non-terminal transactions not updated since the cutoff.
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
}
