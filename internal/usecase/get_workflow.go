package usecase

import (
	"context"
	"fmt"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/deadletter"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/inbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/outbox"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"
)

// WorkflowDTO is the operator's trace of one saga: the aggregate plus every
// event that was staged, consumed or dead-lettered under its correlation id.
type WorkflowDTO struct {
	Transaction *transaction.Transaction `json:"transaction"`
	Outbox      []*outbox.Event          `json:"outbox"`
	Inbox       []*inbox.Event           `json:"inbox"`
	DeadLetters []*deadletter.Record     `json:"dead_letters,omitempty"`
}

type GetWorkflow struct {
	txRepo     transaction.Repository
	outboxRepo outbox.Repository
	inboxStore inbox.Store
	deadRepo   deadletter.Repository
}

func NewGetWorkflow(txRepo transaction.Repository, outboxRepo outbox.Repository, inboxStore inbox.Store, deadRepo deadletter.Repository) *GetWorkflow {
	return &GetWorkflow{
		txRepo:     txRepo,
		outboxRepo: outboxRepo,
		inboxStore: inboxStore,
		deadRepo:   deadRepo,
	}
}

func (uc *GetWorkflow) Execute(ctx context.Context, transactionID string) (*WorkflowDTO, error) {
	t, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	outboxEvents, err := uc.outboxRepo.ListByCorrelationID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get outbox events: %w", err)
	}

	inboxEvents, err := uc.inboxStore.ListByCorrelationID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get inbox events: %w", err)
	}

	deadLetters, err := uc.deadRepo.ListByCorrelationID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get dead letters: %w", err)
	}

	return &WorkflowDTO{
		Transaction: t,
		Outbox:      outboxEvents,
		Inbox:       inboxEvents,
		DeadLetters: deadLetters,
	}, nil
}
