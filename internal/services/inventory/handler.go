package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/product"

	"github.com/redis/go-redis/v9"
)

// Handler is the inventory service's consumer: it deducts stock for completed
// purchases from the snapshotted lines. Stock was only reserved implicitly by
// the availability check, so the deduction happens once the goods are known
// to have left the machine.
type Handler struct {
	repo    product.Repository
	emitter *bus.Emitter
	cache   *redis.Client
	logger  *slog.Logger
}

func NewHandler(repo product.Repository, emitter *bus.Emitter, cache *redis.Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, emitter: emitter, cache: cache, logger: logger}
}

func (h *Handler) Register(r *bus.Router) {
	r.Handle(event.TypeTransactionCompleted, h.onTransactionCompleted)
}

func (h *Handler) onTransactionCompleted(ctx context.Context, env *event.Envelope, payload any) error {
	p := payload.(*event.TransactionCompleted)

	for _, line := range p.Lines {
		remaining, err := h.repo.Deduct(ctx, line.ProductID, line.Quantity)
		if err != nil {
			// The units were already dispensed; a deduction that cannot land
			// is a bookkeeping discrepancy, not a reason to re-run the saga.
			h.logger.Error("stock deduction requires manual reconciliation",
				"transaction_id", p.TransactionID, "product_id", line.ProductID,
				"quantity", line.Quantity, "error", err)
			continue
		}

		h.invalidateCache(ctx, line.ProductID)

		if remaining == 0 {
			h.logger.Info("product out of stock", "product_id", line.ProductID)
			if err := h.emitter.Emit(ctx, event.TypeProductOutOfStock, line.ProductID, event.AggregateProduct, env.CorrelationID,
				event.ProductOutOfStock{ProductID: line.ProductID}, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

func (h *Handler) invalidateCache(ctx context.Context, productID string) {
	if h.cache == nil {
		return
	}
	key := fmt.Sprintf("availability:%s", productID)
	if err := h.cache.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		h.logger.Warn("failed to invalidate availability cache", "product_id", productID, "error", err)
	}
	// Short TTL marker so hot products re-read from the database.
	h.cache.Set(ctx, key+":stale", time.Now().Unix(), time.Minute)
}
