package client

import (
	"context"
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/resilience"
)

type AvailabilityItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Inventory is the synchronous contract of the inventory collaborator.
// Call sites own the fallbacks: availability and price both fail closed.
// Stock deduction is not here on purpose; it happens asynchronously in the
// inventory service when a purchase completes.
type Inventory interface {
	CheckAvailability(ctx context.Context, items []AvailabilityItem) (map[string]bool, error)
	LookupPrice(ctx context.Context, productID string) (float64, error)
}

type InventoryClient struct {
	caller httpCaller
	policy *resilience.Policy
}

func NewInventoryClient(baseURL, token string, policy *resilience.Policy) *InventoryClient {
	return &InventoryClient{
		caller: httpCaller{baseURL: baseURL, token: token, client: &http.Client{}},
		policy: policy,
	}
}

func (c *InventoryClient) CheckAvailability(ctx context.Context, items []AvailabilityItem) (map[string]bool, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (map[string]bool, error) {
		var resp struct {
			Items map[string]struct {
				Available bool `json:"available"`
			} `json:"items"`
		}
		if err := c.caller.postJSON(ctx, "/internal/availability", map[string]any{"items": items}, &resp); err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(resp.Items))
		for id, it := range resp.Items {
			out[id] = it.Available
		}
		return out, nil
	})
}

func (c *InventoryClient) LookupPrice(ctx context.Context, productID string) (float64, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (float64, error) {
		var resp struct {
			Price float64 `json:"price"`
		}
		if err := c.caller.getJSON(ctx, "/internal/products/"+productID+"/price", &resp); err != nil {
			return 0, err
		}
		return resp.Price, nil
	})
}
