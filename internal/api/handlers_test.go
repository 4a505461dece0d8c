package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/client"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/deadletter"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/inbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/saga"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/usecase"

	"github.com/stretchr/testify/require"
)

type fakeTx struct{}

func (fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTxRepo struct {
	byID map[string]*transaction.Transaction
}

func (r *fakeTxRepo) Create(ctx context.Context, t *transaction.Transaction) error {
	r.byID[t.ID] = t
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
	return true, nil
}

func (r *fakeTxRepo) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*transaction.Transaction, error) {
	return nil, nil
}

type fakeOutbox struct{}

func (fakeOutbox) Create(ctx context.Context, e *outbox.Event) error { return nil }
func (fakeOutbox) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	return nil, nil
}
func (fakeOutbox) MarkProcessed(ctx context.Context, ids []string) error { return nil }
func (fakeOutbox) MarkFailed(ctx context.Context, ids []string) error    { return nil }
func (fakeOutbox) ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error) {
	return []*outbox.Event{{ID: "o1", EventType: "PAYMENT_REQUESTED", CorrelationID: correlationID}}, nil
}

type fakeInbox struct{}

func (fakeInbox) MarkIfNew(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error) {
	return true, nil
}
func (fakeInbox) ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Event, error) {
	return nil, nil
}

type fakeDeadRepo struct{}

func (fakeDeadRepo) Create(ctx context.Context, rec *deadletter.Record) error { return nil }
func (fakeDeadRepo) ListByCorrelationID(ctx context.Context, correlationID string) ([]*deadletter.Record, error) {
	return nil, nil
}
func (fakeDeadRepo) Resolve(ctx context.Context, id, resolvedBy string) error { return nil }

type fakeInventory struct {
	available map[string]bool
	availErr  error
	prices    map[string]float64
}

func (i *fakeInventory) CheckAvailability(ctx context.Context, items []client.AvailabilityItem) (map[string]bool, error) {
	if i.availErr != nil {
		return nil, i.availErr
	}
	return i.available, nil
}

func (i *fakeInventory) LookupPrice(ctx context.Context, productID string) (float64, error) {
	return i.prices[productID], nil
}

type fakeGateway struct{}

func (fakeGateway) Submit(ctx context.Context, req client.PaymentRequest) (client.PaymentResult, error) {
	return client.PaymentResult{}, errors.New("not used")
}
func (fakeGateway) Refund(ctx context.Context, transactionID string, amount float64) (bool, error) {
	return true, nil
}
func (fakeGateway) Status(ctx context.Context, transactionID string) (string, error) {
	return "", nil
}

func newTestServer(repo *fakeTxRepo, inv *fakeInventory) http.Handler {
	emitter := bus.NewEmitter(fakeOutbox{}, "transaction-service")
	workflow := saga.NewWorkflow(repo, emitter, fakeGateway{}, nil)
	h := NewHandlers(
		saga.NewCreatePurchase(fakeTx{}, repo, emitter, inv, nil),
		saga.NewCancelTransaction(fakeTx{}, repo, workflow, emitter, nil),
		usecase.NewGetTransaction(nil, repo),
		usecase.NewGetWorkflow(repo, fakeOutbox{}, fakeInbox{}, fakeDeadRepo{}),
	)
	return NewRouter(h, nil)
}

func TestCreatePurchaseEndpoint(t *testing.T) {
	repo := &fakeTxRepo{byID: make(map[string]*transaction.Transaction)}
	inv := &fakeInventory{
		available: map[string]bool{"cola-330": true},
		prices:    map[string]float64{"cola-330": 1.5},
	}
	srv := newTestServer(repo, inv)

	body := `{"lines":[{"product_id":"cola-330","quantity":2}],"payment_method":"card"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "PENDING", resp["status"])
	require.NotEmpty(t, resp["transaction_id"])
	require.InDelta(t, 3.0, resp["total_amount"], 1e-9)
}

func TestCreatePurchaseRejectsBadRequest(t *testing.T) {
	srv := newTestServer(&fakeTxRepo{byID: map[string]*transaction.Transaction{}}, &fakeInventory{})

	req := httptest.NewRequest(http.MethodPost, "/purchases", strings.NewReader(`{"lines":[]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePurchaseConflictWhenUnavailable(t *testing.T) {
	inv := &fakeInventory{availErr: errors.New("inventory down")}
	srv := newTestServer(&fakeTxRepo{byID: map[string]*transaction.Transaction{}}, inv)

	body := `{"lines":[{"product_id":"cola-330","quantity":1}],"payment_method":"card"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestGetTransactionEndpoint(t *testing.T) {
	repo := &fakeTxRepo{byID: map[string]*transaction.Transaction{
		"t1": {ID: "t1", Status: transaction.StatusProcessing, TotalAmount: 3.0},
	}}
	srv := newTestServer(repo, &fakeInventory{})

	req := httptest.NewRequest(http.MethodGet, "/transactions/t1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got transaction.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, transaction.StatusProcessing, got.Status)
}

func TestGetWorkflowEndpoint(t *testing.T) {
	repo := &fakeTxRepo{byID: map[string]*transaction.Transaction{
		"t1": {ID: "t1", Status: transaction.StatusCompleted},
	}}
	srv := newTestServer(repo, &fakeInventory{})

	req := httptest.NewRequest(http.MethodGet, "/transactions/t1/workflow", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var dto usecase.WorkflowDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	require.Equal(t, "t1", dto.Transaction.ID)
	require.Len(t, dto.Outbox, 1)
}

func TestCancelEndpoint(t *testing.T) {
	repo := &fakeTxRepo{byID: map[string]*transaction.Transaction{
		"t1": {ID: "t1", Status: transaction.StatusPending},
	}}
	srv := newTestServer(repo, &fakeInventory{})

	req := httptest.NewRequest(http.MethodPost, "/transactions/t1/cancel", strings.NewReader(`{"reason":"operator"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, transaction.StatusCancelled, repo.byID["t1"].Status)
}

func TestCancelTerminalConflicts(t *testing.T) {
	repo := &fakeTxRepo{byID: map[string]*transaction.Transaction{
		"t1": {ID: "t1", Status: transaction.StatusCompleted},
	}}
	srv := newTestServer(repo, &fakeInventory{})

	req := httptest.NewRequest(http.MethodPost, "/transactions/t1/cancel", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}
