package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"

	"github.com/stretchr/testify/require"
)

// Shared in-memory fakes for the saga tests.

type fakeTx struct{}

func (fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTxRepo struct {
	byID    map[string]*transaction.Transaction
	created []*transaction.Transaction
}

func newFakeTxRepo(ts ...*transaction.Transaction) *fakeTxRepo {
	r := &fakeTxRepo{byID: make(map[string]*transaction.Transaction)}
	for _, t := range ts {
		r.byID[t.ID] = t
	}
	return r
}

func (r *fakeTxRepo) Create(ctx context.Context, t *transaction.Transaction) error {
	r.byID[t.ID] = t
	r.created = append(r.created, t)
	return nil
}

func (r *fakeTxRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	return t, nil
}

func (r *fakeTxRepo) UpdateStatusIf(ctx context.Context, id string, from, to transaction.Status, reason string) (bool, error) {
	t, ok := r.byID[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if reason != "" {
		t.FailureReason = reason
	}
	t.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeTxRepo) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*transaction.Transaction, error) {
	return nil, nil
}

// outboxRecorder captures staged events so tests can assert on what the saga
// would publish.
type outboxRecorder struct {
	events []*outbox.Event
}

func (r *outboxRecorder) Create(ctx context.Context, e *outbox.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *outboxRecorder) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	return nil, nil
}
func (r *outboxRecorder) MarkProcessed(ctx context.Context, ids []string) error { return nil }
func (r *outboxRecorder) MarkFailed(ctx context.Context, ids []string) error    { return nil }
func (r *outboxRecorder) ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error) {
	return nil, nil
}

func (r *outboxRecorder) typesEmitted() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

func (r *outboxRecorder) last() *outbox.Event {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fakeGateway struct {
	refundOK    bool
	refundErr   error
	refunds     []string
	statusValue string
	statusErr   error
}

func (g *fakeGateway) Submit(ctx context.Context, req client.PaymentRequest) (client.PaymentResult, error) {
	return client.PaymentResult{}, errors.New("not used")
}

func (g *fakeGateway) Refund(ctx context.Context, transactionID string, amount float64) (bool, error) {
	g.refunds = append(g.refunds, transactionID)
	return g.refundOK, g.refundErr
}

func (g *fakeGateway) Status(ctx context.Context, transactionID string) (string, error) {
	return g.statusValue, g.statusErr
}

type fakeInventory struct {
	available map[string]bool
	availErr  error
	prices    map[string]float64
	priceErr  error
}

func (i *fakeInventory) CheckAvailability(ctx context.Context, items []client.AvailabilityItem) (map[string]bool, error) {
	if i.availErr != nil {
		return nil, i.availErr
	}
	return i.available, nil
}

func (i *fakeInventory) LookupPrice(ctx context.Context, productID string) (float64, error) {
	if i.priceErr != nil {
		return 0, i.priceErr
	}
	return i.prices[productID], nil
}

func envelopeFor(typ event.Type, payload any) *event.Envelope {
	data, _ := json.Marshal(payload)
	return &event.Envelope{
		ID:            "evt-1",
		Type:          typ,
		CorrelationID: "corr-1",
		OccurredAt:    time.Now(),
		Payload:       data,
		Version:       event.SchemaVersion,
	}
}

func pendingTransaction(id string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:            id,
		Lines:         []transaction.Line{{ProductID: "cola-330", Quantity: 2, UnitPrice: 1.5}},
		TotalAmount:   3.0,
		PaymentMethod: "card",
		Status:        transaction.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func newTestEmitter(rec *outboxRecorder) *bus.Emitter {
	return bus.NewEmitter(rec, "test")
}

func requireUnmarshal(t *testing.T, data []byte, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, dst))
}
