package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

// ErrUnavailable rejects a purchase when stock cannot be confirmed. This is
// the fail-closed branch: an unreachable inventory collaborator reads as
// "nothing available", never as "assume available".
var ErrUnavailable = errors.New("requested products are not available")

var ErrInvalidPurchase = errors.New("invalid purchase request")

type PurchaseLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreatePurchaseParams struct {
	Lines         []PurchaseLine `json:"lines"`
	PaymentMethod string         `json:"payment_method"`
}

// CreatePurchase starts a new saga: it confirms availability, snapshots
// prices, persists the PENDING transaction and stages the payment request
// event in one local transaction.
type CreatePurchase struct {
	tx        postgres.Transactor
	repo      transaction.Repository
	emitter   *bus.Emitter
	inventory client.Inventory
	logger    *slog.Logger
}

func NewCreatePurchase(tx postgres.Transactor, repo transaction.Repository, emitter *bus.Emitter, inventory client.Inventory, logger *slog.Logger) *CreatePurchase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreatePurchase{tx: tx, repo: repo, emitter: emitter, inventory: inventory, logger: logger}
}

func (uc *CreatePurchase) Execute(ctx context.Context, params CreatePurchaseParams) (*transaction.Transaction, error) {
	if len(params.Lines) == 0 || params.PaymentMethod == "" {
		return nil, ErrInvalidPurchase
	}
	items := make([]client.AvailabilityItem, 0, len(params.Lines))
	for _, l := range params.Lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			return nil, ErrInvalidPurchase
		}
		items = append(items, client.AvailabilityItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	available, err := uc.inventory.CheckAvailability(ctx, items)
	if err != nil {
		uc.logger.Warn("availability check degraded, rejecting purchase", "error", err)
		return nil, ErrUnavailable
	}
	for _, it := range items {
		if !available[it.ProductID] {
			return nil, fmt.Errorf("%w: product %s", ErrUnavailable, it.ProductID)
		}
	}

	// Snapshot prices now; the saga must not re-read the catalog mid-flight.
	lines := make([]transaction.Line, 0, len(params.Lines))
	var total float64
	for _, l := range params.Lines {
		price, err := uc.inventory.LookupPrice(ctx, l.ProductID)
		if err != nil {
			uc.logger.Warn("price lookup degraded, rejecting purchase", "product_id", l.ProductID, "error", err)
			return nil, ErrUnavailable
		}
		lines = append(lines, transaction.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price})
		total += price * float64(l.Quantity)
	}

	t := &transaction.Transaction{
		ID:            uuid.New().String(),
		Lines:         lines,
		TotalAmount:   total,
		PaymentMethod: params.PaymentMethod,
		Status:        transaction.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	eventLines := toEventLines(lines)
	err = uc.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.repo.Create(txCtx, t); err != nil {
			return err
		}
		return uc.emitter.Emit(txCtx, event.TypePaymentRequested, t.ID, event.AggregateTransaction, t.ID,
			event.PaymentRequested{
				TransactionID: t.ID,
				Amount:        t.TotalAmount,
				Method:        t.PaymentMethod,
				Lines:         eventLines,
			}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	uc.logger.Info("purchase created", "transaction_id", t.ID, "total", t.TotalAmount)
	return t, nil
}

func toEventLines(lines []transaction.Line) []event.Line {
	out := make([]event.Line, len(lines))
	for i, l := range lines {
		out[i] = event.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}
