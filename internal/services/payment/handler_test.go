package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"
	domain "github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/payment"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created []*domain.Payment
}

func (r *fakeRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.created = append(r.created, p)
	return nil
}

func (r *fakeRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return nil, nil
}

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

type fakeGateway struct {
	result client.PaymentResult
	err    error
}

func (g *fakeGateway) Submit(ctx context.Context, req client.PaymentRequest) (client.PaymentResult, error) {
	return g.result, g.err
}

func (g *fakeGateway) Refund(ctx context.Context, transactionID string, amount float64) (bool, error) {
	return false, nil
}

func (g *fakeGateway) Status(ctx context.Context, transactionID string) (string, error) {
	return "", nil
}

func requested() (*event.Envelope, *event.PaymentRequested) {
	p := &event.PaymentRequested{TransactionID: "t1", Amount: 3.0, Method: "card"}
	data, _ := json.Marshal(p)
	return &event.Envelope{
		ID:            "evt-1",
		Type:          event.TypePaymentRequested,
		CorrelationID: "t1",
		OccurredAt:    time.Now(),
		Payload:       data,
		Version:       event.SchemaVersion,
	}, p
}

func TestSuccessfulChargeEmitsPaymentCompleted(t *testing.T) {
	repo := &fakeRepo{}
	rec := &outboxRecorder{}
	gw := &fakeGateway{result: client.PaymentResult{Success: true, Status: "approved"}}
	h := NewHandler(repo, bus.NewEmitter(rec, "payment-service"), gw, nil)

	env, p := requested()
	require.NoError(t, h.onPaymentRequested(context.Background(), env, p))

	require.Len(t, repo.created, 1)
	require.Equal(t, domain.StatusCompleted, repo.created[0].Status)
	require.Equal(t, "t1", repo.created[0].TransactionID)

	require.Len(t, rec.events, 1)
	require.Equal(t, "PAYMENT_COMPLETED", rec.events[0].EventType)
	require.Equal(t, "t1", rec.events[0].CorrelationID)

	var out event.PaymentCompleted
	require.NoError(t, json.Unmarshal(rec.events[0].Payload, &out))
	require.Equal(t, repo.created[0].ID, out.PaymentID)
}

func TestDeclinedChargeEmitsPaymentFailed(t *testing.T) {
	repo := &fakeRepo{}
	rec := &outboxRecorder{}
	gw := &fakeGateway{result: client.PaymentResult{Success: false, Status: "insufficient funds"}}
	h := NewHandler(repo, bus.NewEmitter(rec, "payment-service"), gw, nil)

	env, p := requested()
	require.NoError(t, h.onPaymentRequested(context.Background(), env, p))

	require.Len(t, repo.created, 1)
	require.Equal(t, domain.StatusFailed, repo.created[0].Status)

	require.Len(t, rec.events, 1)
	require.Equal(t, "PAYMENT_FAILED", rec.events[0].EventType)
	var out event.PaymentFailed
	require.NoError(t, json.Unmarshal(rec.events[0].Payload, &out))
	require.Equal(t, "insufficient funds", out.Reason)
}

func TestGatewayOutageFailsClosed(t *testing.T) {
	repo := &fakeRepo{}
	rec := &outboxRecorder{}
	gw := &fakeGateway{err: errors.New("connection refused")}
	h := NewHandler(repo, bus.NewEmitter(rec, "payment-service"), gw, nil)

	env, p := requested()
	require.NoError(t, h.onPaymentRequested(context.Background(), env, p),
		"an unreachable gateway is a failed payment, not a handler error")

	require.Len(t, repo.created, 1)
	require.Equal(t, domain.StatusFailed, repo.created[0].Status)
	require.Len(t, rec.events, 1)
	require.Equal(t, "PAYMENT_FAILED", rec.events[0].EventType)
}
