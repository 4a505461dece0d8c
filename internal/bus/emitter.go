package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"

	"github.com/google/uuid"
)

// Emitter stages domain events in the outbox. When called on a transactional
// context the event commits atomically with the caller's state change; the
// relay publishes it afterwards.
type Emitter struct {
	repo   outbox.Repository
	source string
}

func NewEmitter(repo outbox.Repository, source string) *Emitter {
	return &Emitter{repo: repo, source: source}
}

func (e *Emitter) Emit(ctx context.Context, typ event.Type, aggregateID, aggregateType, correlationID string, payload any, metadata map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	var meta []byte
	if len(metadata) > 0 {
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal %s metadata: %w", typ, err)
		}
	}

	ev := &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     string(typ),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       data,
		Status:        "new",
		CorrelationID: correlationID,
		Producer:      e.source,
		Metadata:      meta,
		CreatedAt:     time.Now(),
	}

	if err := e.repo.Create(ctx, ev); err != nil {
		return fmt.Errorf("stage %s event: %w", typ, err)
	}
	return nil
}
