package dispensing

import (
	"context"
	"log/slog"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"

	"github.com/google/uuid"
)

// Handler is the dispensing service's consumer. It triggers the hardware
// through the resilient client; when that degrades the fallback is explicit:
// dispensing failed and compensation is required, because the customer has
// already been charged by the time a dispense is requested.
type Handler struct {
	dispenser client.Dispenser
	emitter   *bus.Emitter
	logger    *slog.Logger
}

func NewHandler(dispenser client.Dispenser, emitter *bus.Emitter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dispenser: dispenser, emitter: emitter, logger: logger}
}

func (h *Handler) Register(r *bus.Router) {
	r.Handle(event.TypeDispensingRequested, h.onDispensingRequested)
}

func (h *Handler) onDispensingRequested(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.DispensingRequested)
	dispensingID := uuid.New().String()

	res, err := h.dispenser.Dispense(ctx, p.TransactionID, p.Lines)
	if err != nil {
		h.logger.Error("dispense trigger degraded", "transaction_id", p.TransactionID, "error", err)
		return h.emitter.Emit(ctx, event.TypeDispensingFailed, dispensingID, event.AggregateDispensing, p.TransactionID,
			event.DispensingFailed{
				TransactionID:        p.TransactionID,
				Reason:               "dispenser unavailable",
				CompensationRequired: true,
			},
			map[string]string{"failure_reason": err.Error()})
	}

	// The hardware reports per-line counts; shortfalls are passed through
	// untouched and judged by the saga owner.
	h.logger.Info("dispense attempted", "transaction_id", p.TransactionID, "lines", len(res.Lines))
	return h.emitter.Emit(ctx, event.TypeDispensingCompleted, dispensingID, event.AggregateDispensing, p.TransactionID,
		event.DispensingCompleted{TransactionID: p.TransactionID, Lines: res.Lines}, nil)
}
