package payment

import (
	"context"
	"time"
)

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Payment is the payment service's own record of a charge attempt, keyed by
// transaction id. It is the authoritative answer when the saga owner (or the
// recovery sweeper) asks whether money actually moved.
type Payment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
}
