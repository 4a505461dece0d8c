package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/inbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/infrastructure/postgres"

	"github.com/segmentio/kafka-go"
)

// DeliveryState is the explicit per-envelope outcome of one delivery attempt
// cycle, so attempt counts and terminal outcomes are testable on their own.
type DeliveryState string

const (
	DeliveryApplied      DeliveryState = "applied"
	DeliverySkipped      DeliveryState = "skipped"
	DeliveryDeadLettered DeliveryState = "dead-lettered"
)

type Delivery struct {
	State    DeliveryState
	Attempts int
	Err      error
}

// HandlerFunc processes one decoded event on the same transaction as the
// idempotency mark. Returning an error triggers redelivery.
type HandlerFunc func(ctx context.Context, env *event.Envelope, payload any) error

// Source is the slice of the Kafka consumer the router needs.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Topic() string
}

// Escalator receives envelopes whose processing exhausted the retry budget.
// It must never fail into the consumer pipeline.
type Escalator interface {
	Escalate(ctx context.Context, msg kafka.Message, env *event.Envelope, attempts int, errType string, cause error)
}

// Router is the consumer side of the bus: it deduplicates via the inbox
// store, decodes payloads once at the boundary, and dispatches to per-type
// handlers. Kafka assigns partitions within the group, so events sharing a
// correlation id arrive here in publish order.
type Router struct {
	consumer   string
	source     Source
	tx         postgres.Transactor
	store      inbox.Store
	dlq        Escalator
	handlers   map[event.Type]HandlerFunc
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewRouter(consumer string, source Source, tx postgres.Transactor, store inbox.Store, dlq Escalator, maxRetries int, backoff time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		consumer:   consumer,
		source:     source,
		tx:         tx,
		store:      store,
		dlq:        dlq,
		handlers:   make(map[event.Type]HandlerFunc),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

func (r *Router) Handle(t event.Type, h HandlerFunc) {
	r.handlers[t] = h
}

// Run fetches and processes messages until the context is cancelled.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("consumer started", "consumer", r.consumer, "topic", r.source.Topic())

	for {
		msg, err := r.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("failed to fetch message", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		d := r.Deliver(ctx, msg)
		if d.State == DeliveryApplied || d.Err == nil || d.State == DeliveryDeadLettered {
			if err := r.source.CommitMessages(ctx, msg); err != nil {
				r.logger.Error("failed to commit kafka message", "error", err)
			}
		}
	}
}

// Deliver runs one message through the delivery state machine:
// attempting -> retrying -> applied | dead-lettered, with skipped as the
// silent no-op for duplicates, unknown types and foreign messages.
func (r *Router) Deliver(ctx context.Context, msg kafka.Message) Delivery {
	started := time.Now()

	env, err := event.Unmarshal(msg.Value)
	if err != nil {
		// Not our envelope (or corrupt). Acknowledge and move on.
		r.logger.Error("failed to unmarshal event envelope", "error", err)
		eventsSkipped.WithLabelValues(r.consumer, "bad_envelope").Inc()
		return Delivery{State: DeliverySkipped}
	}

	h, ok := r.handlers[env.Type]
	if !ok {
		// Unknown types are never fatal: other services introduce new event
		// kinds before every consumer learns about them.
		r.logger.Debug("no handler for event type", "event_type", env.Type, "event_id", env.ID)
		eventsSkipped.WithLabelValues(r.consumer, "unhandled_type").Inc()
		return Delivery{State: DeliverySkipped}
	}

	payload, err := event.Decode(env)
	if err != nil {
		// Malformed payload is unrecoverable; redelivery cannot fix it.
		r.logger.Error("failed to decode payload", "event_id", env.ID, "event_type", env.Type, "error", err)
		r.dlq.Escalate(ctx, msg, env, 1, "validation", err)
		eventsDeadLettered.WithLabelValues(r.consumer).Inc()
		return Delivery{State: DeliveryDeadLettered, Attempts: 1, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.backoff * time.Duration(1<<(attempt-1))
			r.logger.Info("retry attempt", "attempt", attempt, "max", r.maxRetries,
				"event_id", env.ID, "backoff", backoff)
			select {
			case <-ctx.Done():
				return Delivery{State: DeliverySkipped, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		applied, err := r.processOnce(ctx, h, env, payload)
		if err == nil {
			if !applied {
				eventsSkipped.WithLabelValues(r.consumer, "duplicate").Inc()
				return Delivery{State: DeliverySkipped, Attempts: attempt + 1}
			}
			eventsApplied.WithLabelValues(r.consumer, string(env.Type)).Inc()
			processingDuration.WithLabelValues(r.consumer).Observe(time.Since(started).Seconds())
			r.logger.Info("event applied", "event_id", env.ID, "event_type", env.Type,
				"correlation_id", env.CorrelationID)
			return Delivery{State: DeliveryApplied, Attempts: attempt + 1}
		}

		lastErr = err
		r.logger.Error("processing failed", "event_id", env.ID, "error", err)
	}

	r.dlq.Escalate(ctx, msg, env, r.maxRetries+1, "processing", lastErr)
	eventsDeadLettered.WithLabelValues(r.consumer).Inc()
	return Delivery{State: DeliveryDeadLettered, Attempts: r.maxRetries + 1, Err: lastErr}
}

// processOnce applies the handler and the idempotency mark in one local
// transaction. Returns applied=false when the event was already processed.
func (r *Router) processOnce(ctx context.Context, h HandlerFunc, env *event.Envelope, payload any) (applied bool, err error) {
	err = r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		isNew, err := r.store.MarkIfNew(txCtx, r.consumer, env.ID, string(env.Type), env.CorrelationID)
		if err != nil {
			return err
		}
		if !isNew {
			return nil
		}
		applied = true
		return h(txCtx, env, payload)
	})
	if err != nil {
		applied = false
	}
	return applied, err
}
