package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
)

var ErrNotCancellable = errors.New("transaction is already terminal")

// CancelTransaction is the administrative cancel: it closes a live saga and,
// when payment already went through (PROCESSING), triggers the refund.
type CancelTransaction struct {
	tx       postgres.Transactor
	repo     transaction.Repository
	workflow *Workflow
	emitter  *bus.Emitter
	logger   *slog.Logger
}

func NewCancelTransaction(tx postgres.Transactor, repo transaction.Repository, workflow *Workflow, emitter *bus.Emitter, logger *slog.Logger) *CancelTransaction {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelTransaction{tx: tx, repo: repo, workflow: workflow, emitter: emitter, logger: logger}
}

func (uc *CancelTransaction) Execute(ctx context.Context, transactionID, reason string) error {
	if reason == "" {
		reason = "cancelled by operator"
	}

	return uc.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		t, err := uc.repo.GetByID(txCtx, transactionID)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", transactionID, err)
		}
		if t.Status.Terminal() {
			return ErrNotCancellable
		}

		applied, err := uc.repo.UpdateStatusIf(txCtx, t.ID, t.Status, transaction.StatusCancelled, reason)
		if err != nil {
			return err
		}
		if !applied {
			// Lost the race against a live consumer; the saga moved on.
			return ErrNotCancellable
		}

		if t.Status == transaction.StatusProcessing {
			if err := uc.workflow.Compensate(txCtx, t, reason); err != nil {
				return err
			}
		}

		return uc.emitter.Emit(txCtx, event.TypeTransactionCancelled, t.ID, event.AggregateTransaction, t.ID,
			event.TransactionCancelled{TransactionID: t.ID, Reason: reason}, nil)
	})
}
