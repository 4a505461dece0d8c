package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
)

// Workflow holds the transaction service's event handlers: the state machine
// transitions driven by payment and dispensing outcomes. Every transition is
// guarded by the persisted status, so duplicated or out-of-order events
// degrade to logged no-ops.
type Workflow struct {
	repo     transaction.Repository
	emitter  *bus.Emitter
	payments client.PaymentGateway
	logger   *slog.Logger
}

func NewWorkflow(repo transaction.Repository, emitter *bus.Emitter, payments client.PaymentGateway, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{repo: repo, emitter: emitter, payments: payments, logger: logger}
}

func (w *Workflow) Register(r *bus.Router) {
	r.Handle(event.TypePaymentCompleted, w.onPaymentCompleted)
	r.Handle(event.TypePaymentFailed, w.onPaymentFailed)
	r.Handle(event.TypeDispensingCompleted, w.onDispensingCompleted)
	r.Handle(event.TypeDispensingFailed, w.onDispensingFailed)
}

func (w *Workflow) onPaymentCompleted(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.PaymentCompleted)

	applied, err := w.repo.UpdateStatusIf(ctx, p.TransactionID, transaction.StatusPending, transaction.StatusProcessing, "")
	if err != nil {
		return err
	}
	if !applied {
		w.logger.Info("stale payment-completed event ignored",
			"transaction_id", p.TransactionID, "event_id", env.ID)
		return nil
	}

	t, err := w.repo.GetByID(ctx, p.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", p.TransactionID, err)
	}

	return w.emitter.Emit(ctx, event.TypeDispensingRequested, t.ID, event.AggregateTransaction, t.ID,
		event.DispensingRequested{TransactionID: t.ID, Lines: toEventLines(t.Lines)}, nil)
}

func (w *Workflow) onPaymentFailed(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.PaymentFailed)

	// Payment never happened, so there is nothing to compensate.
	applied, err := w.repo.UpdateStatusIf(ctx, p.TransactionID, transaction.StatusPending, transaction.StatusFailed, p.Reason)
	if err != nil {
		return err
	}
	if !applied {
		w.logger.Info("stale payment-failed event ignored",
			"transaction_id", p.TransactionID, "event_id", env.ID)
		return nil
	}

	return w.emitter.Emit(ctx, event.TypeTransactionFailed, p.TransactionID, event.AggregateTransaction, p.TransactionID,
		event.TransactionFailed{TransactionID: p.TransactionID, Reason: p.Reason}, nil)
}

func (w *Workflow) onDispensingCompleted(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.DispensingCompleted)

	// A shortfall must not resolve to COMPLETED: the customer paid for units
	// that never left the machine, so it is handled as a failed dispense.
	if !p.FullyDispensed() {
		return w.failWithCompensation(ctx, env, p.TransactionID, "partial dispense")
	}

	applied, err := w.repo.UpdateStatusIf(ctx, p.TransactionID, transaction.StatusProcessing, transaction.StatusCompleted, "")
	if err != nil {
		return err
	}
	if !applied {
		w.logger.Info("stale dispensing-completed event ignored",
			"transaction_id", p.TransactionID, "event_id", env.ID)
		return nil
	}

	t, err := w.repo.GetByID(ctx, p.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", p.TransactionID, err)
	}

	return w.emitter.Emit(ctx, event.TypeTransactionCompleted, t.ID, event.AggregateTransaction, t.ID,
		event.TransactionCompleted{TransactionID: t.ID, Lines: toEventLines(t.Lines)}, nil)
}

func (w *Workflow) onDispensingFailed(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.DispensingFailed)
	return w.failWithCompensation(ctx, env, p.TransactionID, p.Reason)
}

// failWithCompensation moves a PROCESSING saga to FAILED and triggers the
// refund. The saga only reaches PROCESSING after a successful payment, so
// this is the one point where money must flow back.
func (w *Workflow) failWithCompensation(ctx context.Context, env *event.Envelope, transactionID, reason string) error {
	applied, err := w.repo.UpdateStatusIf(ctx, transactionID, transaction.StatusProcessing, transaction.StatusFailed, reason)
	if err != nil {
		return err
	}
	if !applied {
		w.logger.Info("stale dispensing outcome ignored",
			"transaction_id", transactionID, "event_id", env.ID)
		return nil
	}

	t, err := w.repo.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", transactionID, err)
	}

	if err := w.Compensate(ctx, t, reason); err != nil {
		return err
	}

	return w.emitter.Emit(ctx, event.TypeTransactionFailed, t.ID, event.AggregateTransaction, t.ID,
		event.TransactionFailed{TransactionID: t.ID, Reason: reason}, nil)
}

// Compensate attempts the refund and records the request as an event. When
// the refund call itself degrades, the failure is flagged for manual
// reconciliation instead of being converted into another saga failure:
// retrying blindly risks a double refund.
func (w *Workflow) Compensate(ctx context.Context, t *transaction.Transaction, reason string) error {
	metadata := map[string]string{}

	ok, err := w.payments.Refund(ctx, t.ID, t.TotalAmount)
	if err != nil || !ok {
		w.logger.Error("refund requires manual reconciliation",
			"transaction_id", t.ID, "amount", t.TotalAmount, "error", err)
		metadata["manual_reconciliation"] = "true"
		if err != nil {
			metadata["refund_error"] = err.Error()
		}
	}

	return w.emitter.Emit(ctx, event.TypeRefundRequested, t.ID, event.AggregatePayment, t.ID,
		event.RefundRequested{TransactionID: t.ID, Amount: t.TotalAmount, Reason: reason}, metadata)
}
