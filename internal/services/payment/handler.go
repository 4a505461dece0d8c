package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	domain "github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/payment"

	"github.com/google/uuid"
)

// Handler is the payment service's consumer: it charges via the gateway
// collaborator and reports the outcome back onto the stream. The payment
// record it writes is the authoritative answer the recovery sweeper queries.
type Handler struct {
	repo    domain.Repository
	emitter *bus.Emitter
	gateway client.PaymentGateway
	logger  *slog.Logger
}

func NewHandler(repo domain.Repository, emitter *bus.Emitter, gateway client.PaymentGateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, emitter: emitter, gateway: gateway, logger: logger}
}

func (h *Handler) Register(r *bus.Router) {
	r.Handle(event.TypePaymentRequested, h.onPaymentRequested)
}

func (h *Handler) onPaymentRequested(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.PaymentRequested)

	res, err := h.gateway.Submit(ctx, client.PaymentRequest{
		TransactionID: p.TransactionID,
		Method:        p.Method,
		Amount:        p.Amount,
	})
	if err != nil {
		// Fail closed: absent a confirmation the payment did not happen.
		h.logger.Warn("payment gateway degraded, treating as failed",
			"transaction_id", p.TransactionID, "error", err)
		res = client.PaymentResult{Success: false, Status: "gateway unavailable"}
	}

	status := domain.StatusCompleted
	if !res.Success {
		status = domain.StatusFailed
	}

	rec := &domain.Payment{
		ID:            uuid.New().String(),
		TransactionID: p.TransactionID,
		Status:        status,
		Amount:        p.Amount,
		Method:        p.Method,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := h.repo.Create(ctx, rec); err != nil {
		return err
	}

	if res.Success {
		h.logger.Info("payment completed", "transaction_id", p.TransactionID, "payment_id", rec.ID, "amount", p.Amount)
		return h.emitter.Emit(ctx, event.TypePaymentCompleted, rec.ID, event.AggregatePayment, p.TransactionID,
			event.PaymentCompleted{TransactionID: p.TransactionID, PaymentID: rec.ID, Amount: p.Amount}, nil)
	}

	h.logger.Info("payment failed", "transaction_id", p.TransactionID, "reason", res.Status)
	return h.emitter.Emit(ctx, event.TypePaymentFailed, rec.ID, event.AggregatePayment, p.TransactionID,
		event.PaymentFailed{TransactionID: p.TransactionID, Reason: res.Status},
		map[string]string{"failure_reason": res.Status})
}
