package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
)

// Notifier delivers a message to whoever cares. Formatting and transport
// (email, ops channel, display panel) live behind this interface.
type Notifier interface {
	Notify(ctx context.Context, kind, subject, message string) error
}

// LogNotifier is the default sink: it writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, kind, subject, message string) error {
	n.Logger.Info("notification", "kind", kind, "subject", subject, "message", message)
	return nil
}

// Handler is the notification service's consumer for terminal saga events
// and stock alerts.
type Handler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewHandler(notifier Notifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &LogNotifier{Logger: logger}
	}
	return &Handler{notifier: notifier, logger: logger}
}

func (h *Handler) Register(r *bus.Router) {
	r.Handle(event.TypeTransactionCompleted, h.onCompleted)
	r.Handle(event.TypeTransactionFailed, h.onFailed)
	r.Handle(event.TypeTransactionCancelled, h.onCancelled)
	r.Handle(event.TypeProductOutOfStock, h.onOutOfStock)
}

func (h *Handler) onCompleted(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.TransactionCompleted)
	return h.notifier.Notify(ctx, "purchase_completed", p.TransactionID,
		fmt.Sprintf("purchase %s completed (%d lines)", p.TransactionID, len(p.Lines)))
}

func (h *Handler) onFailed(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.TransactionFailed)
	return h.notifier.Notify(ctx, "purchase_failed", p.TransactionID,
		fmt.Sprintf("purchase %s failed: %s", p.TransactionID, p.Reason))
}

func (h *Handler) onCancelled(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.TransactionCancelled)
	return h.notifier.Notify(ctx, "purchase_cancelled", p.TransactionID,
		fmt.Sprintf("purchase %s cancelled: %s", p.TransactionID, p.Reason))
}

func (h *Handler) onOutOfStock(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.ProductOutOfStock)
	return h.notifier.Notify(ctx, "product_out_of_stock", p.ProductID,
		fmt.Sprintf("product %s is out of stock", p.ProductID))
}
