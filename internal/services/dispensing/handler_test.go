package dispensing

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

	"github.com/stretchr/testify/require"
)

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

type fakeDispenser struct {
	result client.DispenseResult
	err    error
}

func (d *fakeDispenser) Dispense(ctx context.Context, transactionID string, lines []event.Line) (client.DispenseResult, error) {
	return d.result, d.err
}

func requested() (*event.Envelope, *event.DispensingRequested) {
	p := &event.DispensingRequested{
		TransactionID: "t1",
		Lines:         []event.Line{{ProductID: "cola-330", Quantity: 2, UnitPrice: 1.5}},
	}
	data, _ := json.Marshal(p)
	return &event.Envelope{
		ID:            "evt-1",
		Type:          event.TypeDispensingRequested,
		CorrelationID: "t1",
		OccurredAt:    time.Now(),
		Payload:       data,
		Version:       event.SchemaVersion,
	}, p
}

func TestDispenseOutcomePassedThrough(t *testing.T) {
	rec := &outboxRecorder{}
	d := &fakeDispenser{result: client.DispenseResult{
		Lines: []event.DispensedLine{{ProductID: "cola-330", Requested: 2, Dispensed: 1}},
	}}
	h := NewHandler(d, bus.NewEmitter(rec, "dispensing-service"), nil)

	env, p := requested()
	require.NoError(t, h.onDispensingRequested(context.Background(), env, p))

	require.Len(t, rec.events, 1)
	require.Equal(t, "DISPENSING_COMPLETED", rec.events[0].EventType)

	// Shortfalls are reported untouched; the saga owner decides what they mean.
	var out event.DispensingCompleted
	require.NoError(t, json.Unmarshal(rec.events[0].Payload, &out))
	require.False(t, out.FullyDispensed())
}

func TestDispenserOutageRequiresCompensation(t *testing.T) {
	rec := &outboxRecorder{}
	d := &fakeDispenser{err: errors.New("serial port timeout")}
	h := NewHandler(d, bus.NewEmitter(rec, "dispensing-service"), nil)

	env, p := requested()
	require.NoError(t, h.onDispensingRequested(context.Background(), env, p))

	require.Len(t, rec.events, 1)
	require.Equal(t, "DISPENSING_FAILED", rec.events[0].EventType)

	var out event.DispensingFailed
	require.NoError(t, json.Unmarshal(rec.events[0].Payload, &out))
	require.True(t, out.CompensationRequired, "the customer was already charged")
	require.Equal(t, "dispenser unavailable", out.Reason)
}
