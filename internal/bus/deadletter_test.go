package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/deadletter"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeDeadRepo struct {
	records []*deadletter.Record
	err     error
}

func (r *fakeDeadRepo) Create(ctx context.Context, rec *deadletter.Record) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeDeadRepo) ListByCorrelationID(ctx context.Context, correlationID string) ([]*deadletter.Record, error) {
	return nil, nil
}

func (r *fakeDeadRepo) Resolve(ctx context.Context, id, resolvedBy string) error { return nil }

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (p *fakeProducer) SendMessage(ctx context.Context, key, value []byte) error { return p.err }

func (p *fakeProducer) SendMessageTo(ctx context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.key = key
	p.value = value
	return nil
}

func (p *fakeProducer) GetTopic() string { return "vending-events" }

func TestEscalatePersistsAndRepublishes(t *testing.T) {
	repo := &fakeDeadRepo{}
	producer := &fakeProducer{}
	h := NewDeadLetterHandler("payment-service", "payment-service-dlq", repo, producer, nil)

	env := testEnvelope(event.TypePaymentRequested, event.PaymentRequested{TransactionID: "t1"})
	msg := kafka.Message{Topic: "vending-events", Partition: 2, Offset: 41}
	msg.Value, _ = event.Marshal(env)

	h.Escalate(context.Background(), msg, env, 6, "processing", errors.New("db unavailable"))

	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	require.Equal(t, env.ID, rec.EventID)
	require.Equal(t, "payment-service", rec.Consumer)
	require.Equal(t, "vending-events", rec.OriginalTopic)
	require.Equal(t, 6, rec.RetryCount)
	require.Equal(t, deadletter.StatusFailed, rec.Status)

	require.Equal(t, "payment-service-dlq", producer.topic)
	require.Equal(t, env.Key(), producer.key)

	dead, err := event.Unmarshal(producer.value)
	require.NoError(t, err)
	require.Equal(t, env.ID, dead.ID, "the original envelope travels to the DLQ intact")
	require.Equal(t, "db unavailable", dead.Meta("failure_reason"))
	require.Equal(t, "processing", dead.Meta("failure_type"))
	require.Equal(t, "payment-service", dead.Meta("failed_consumer"))
	require.Equal(t, "6", dead.Meta("retry_count"))
}

func TestEscalateSurvivesStorageFailure(t *testing.T) {
	repo := &fakeDeadRepo{err: errors.New("insert failed")}
	producer := &fakeProducer{}
	h := NewDeadLetterHandler("payment-service", "payment-service-dlq", repo, producer, nil)

	env := testEnvelope(event.TypePaymentRequested, event.PaymentRequested{TransactionID: "t1"})
	msg := kafka.Message{}
	msg.Value, _ = event.Marshal(env)

	// Must not panic or propagate; the republish still goes out.
	h.Escalate(context.Background(), msg, env, 1, "validation", errors.New("bad payload"))
	require.Equal(t, "payment-service-dlq", producer.topic)
}

func TestEscalateSurvivesPublishFailure(t *testing.T) {
	repo := &fakeDeadRepo{}
	producer := &fakeProducer{err: errors.New("broker down")}
	h := NewDeadLetterHandler("payment-service", "payment-service-dlq", repo, producer, nil)

	env := testEnvelope(event.TypePaymentRequested, event.PaymentRequested{TransactionID: "t1"})
	msg := kafka.Message{}
	msg.Value, _ = event.Marshal(env)

	h.Escalate(context.Background(), msg, env, 1, "processing", errors.New("oops"))
	require.Len(t, repo.records, 1, "the persisted record remains the source of truth")
}
