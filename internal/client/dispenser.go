package client

import (
	"context"
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/event"
	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/resilience"
)

type DispenseResult struct {
	Lines []event.DispensedLine `json:"lines"`
}

// Dispenser triggers the physical dispensing hardware. The simulation behind
// the endpoint is out of scope; only the trigger contract lives here. The
// call-site fallback is "failed, compensation required" because by the time
// dispensing is requested the customer has already paid.
type Dispenser interface {
	Dispense(ctx context.Context, transactionID string, lines []event.Line) (DispenseResult, error)
}

type DispenserClient struct {
	caller httpCaller
	policy *resilience.Policy
}

func NewDispenserClient(baseURL, token string, policy *resilience.Policy) *DispenserClient {
	return &DispenserClient{
		caller: httpCaller{baseURL: baseURL, token: token, client: &http.Client{}},
		policy: policy,
	}
}

func (c *DispenserClient) Dispense(ctx context.Context, transactionID string, lines []event.Line) (DispenseResult, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (DispenseResult, error) {
		var resp DispenseResult
		body := map[string]any{"transaction_id": transactionID, "lines": lines}
		if err := c.caller.postJSON(ctx, "/internal/dispense", body, &resp); err != nil {
			return DispenseResult{}, err
		}
		return resp, nil
	})
}
