package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/bus"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"
)

// OutboxPoller drains staged events onto the bus. Claimed rows that fail to
// publish are returned to 'new' and picked up by a later batch; the inbox on
// the consuming side absorbs any double publish that causes.
type OutboxPoller struct {
	repo      outbox.Repository
	publisher *bus.Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewOutboxPoller(repo outbox.Repository, publisher *bus.Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("failed to process batch", "error", err)
			}
		}
	}
}

func (p *OutboxPoller) processBatch(ctx context.Context) error {
	events, err := p.repo.FetchBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var processedIDs []string
	var failedIDs []string

	for _, e := range events {
		env := toEnvelope(e)

		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.publisher.Publish(sendCtx, env)
		cancel()

		if err != nil {
			p.logger.Error("failed to publish outbox event", "outbox_id", e.ID, "error", err)
			failedIDs = append(failedIDs, e.ID)
			continue
		}
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if err := p.repo.MarkProcessed(ctx, processedIDs); err != nil {
			return err
		}
	}
	if len(failedIDs) > 0 {
		if err := p.repo.MarkFailed(ctx, failedIDs); err != nil {
			p.logger.Error("failed to mark events as failed", "error", err)
		}
	}

	return nil
}

func toEnvelope(e *outbox.Event) *event.Envelope {
	var meta map[string]string
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &meta)
	}

	return &event.Envelope{
		ID:            e.ID,
		Type:          event.Type(e.EventType),
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Source:        e.Producer,
		CorrelationID: e.CorrelationID,
		// The staging time, not the publish time: a delayed relay batch must
		// not shift when the fact occurred.
		OccurredAt: e.CreatedAt.UTC(),
		Payload:       e.Payload,
		Metadata:      meta,
		Version:       event.SchemaVersion,
	}
}
