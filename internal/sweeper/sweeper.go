package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/payment"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/saga"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sweeper_resolutions_total",
	Help: "The total number of stuck sagas resolved, by outcome",
}, []string{"outcome"})

type Config struct {
	Interval   time.Duration
	StuckAfter time.Duration
	BatchSize  int
}

// Sweeper repairs sagas stuck past the timeout. It never waits for another
// event: it asks the payment collaborator for the authoritative charge state
// and advances, compensates, or fails the saga from that answer. Status
// guards make races with live consumers safe; the loser is a no-op.
type Sweeper struct {
	cfg      Config
	tx       postgres.Transactor
	repo     transaction.Repository
	emitter  *bus.Emitter
	workflow *saga.Workflow
	payments client.PaymentGateway
	logger   *slog.Logger
}

func New(cfg Config, tx postgres.Transactor, repo transaction.Repository, emitter *bus.Emitter, workflow *saga.Workflow, payments client.PaymentGateway, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cfg: cfg, tx: tx, repo: repo, emitter: emitter,
		workflow: workflow, payments: payments, logger: logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started", "interval", s.cfg.Interval, "stuck_after", s.cfg.StuckAfter)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.StuckAfter)
	stuck, err := s.repo.ListStuck(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, t := range stuck {
		if err := s.resolve(ctx, t); err != nil {
			s.logger.Error("failed to resolve stuck saga", "transaction_id", t.ID, "error", err)
		}
	}
	return nil
}

func (s *Sweeper) resolve(ctx context.Context, t *transaction.Transaction) error {
	status, err := s.payments.Status(ctx, t.ID)
	if err != nil {
		s.logger.Warn("payment status unavailable, failing saga as last resort",
			"transaction_id", t.ID, "error", err)
		return s.failLastResort(ctx, t)
	}

	switch status {
	case payment.StatusCompleted:
		if t.Status == transaction.StatusPending {
			return s.advance(ctx, t)
		}
		// Payment done but dispensing never concluded: money is at risk,
		// so compensate rather than wait longer.
		return s.cancelWithRefund(ctx, t, "dispensing timed out")
	case payment.StatusFailed:
		return s.fail(ctx, t, "payment failed (recovered)")
	default:
		// Pending or partial charge: compensate and close.
		return s.cancelWithRefund(ctx, t, "payment unresolved past deadline")
	}
}

// advance replays the missing payment-completed transition.
func (s *Sweeper) advance(ctx context.Context, t *transaction.Transaction) error {
	return s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		applied, err := s.repo.UpdateStatusIf(txCtx, t.ID, transaction.StatusPending, transaction.StatusProcessing, "")
		if err != nil || !applied {
			return err
		}
		resolutions.WithLabelValues("advanced").Inc()
		s.logger.Info("stuck saga advanced", "transaction_id", t.ID)
		return s.emitter.Emit(txCtx, event.TypeDispensingRequested, t.ID, event.AggregateTransaction, t.ID,
			event.DispensingRequested{TransactionID: t.ID, Lines: eventLines(t)}, nil)
	})
}

func (s *Sweeper) cancelWithRefund(ctx context.Context, t *transaction.Transaction, reason string) error {
	return s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		applied, err := s.repo.UpdateStatusIf(txCtx, t.ID, t.Status, transaction.StatusCancelled, reason)
		if err != nil || !applied {
			return err
		}
		if err := s.workflow.Compensate(txCtx, t, reason); err != nil {
			return err
		}
		resolutions.WithLabelValues("cancelled").Inc()
		s.logger.Info("stuck saga cancelled with refund", "transaction_id", t.ID, "reason", reason)
		return s.emitter.Emit(txCtx, event.TypeTransactionCancelled, t.ID, event.AggregateTransaction, t.ID,
			event.TransactionCancelled{TransactionID: t.ID, Reason: reason}, nil)
	})
}

func (s *Sweeper) fail(ctx context.Context, t *transaction.Transaction, reason string) error {
	return s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		applied, err := s.repo.UpdateStatusIf(txCtx, t.ID, t.Status, transaction.StatusFailed, reason)
		if err != nil || !applied {
			return err
		}
		resolutions.WithLabelValues("failed").Inc()
		s.logger.Info("stuck saga failed", "transaction_id", t.ID, "reason", reason)
		return s.emitter.Emit(txCtx, event.TypeTransactionFailed, t.ID, event.AggregateTransaction, t.ID,
			event.TransactionFailed{TransactionID: t.ID, Reason: reason}, nil)
	})
}

// failLastResort closes a saga whose payment state cannot be determined. A
// PROCESSING saga implies a successful charge, so the refund is still owed.
func (s *Sweeper) failLastResort(ctx context.Context, t *transaction.Transaction) error {
	const reason = "recovery timeout: payment state unknown"
	return s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		applied, err := s.repo.UpdateStatusIf(txCtx, t.ID, t.Status, transaction.StatusFailed, reason)
		if err != nil || !applied {
			return err
		}
		if t.Status == transaction.StatusProcessing {
			if err := s.workflow.Compensate(txCtx, t, reason); err != nil {
				return err
			}
		}
		resolutions.WithLabelValues("failed").Inc()
		s.logger.Warn("stuck saga failed as last resort", "transaction_id", t.ID)
		return s.emitter.Emit(txCtx, event.TypeTransactionFailed, t.ID, event.AggregateTransaction, t.ID,
			event.TransactionFailed{TransactionID: t.ID, Reason: reason}, nil)
	})
}

func eventLines(t *transaction.Transaction) []event.Line {
	out := make([]event.Line, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = event.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}
