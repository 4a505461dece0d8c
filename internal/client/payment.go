package client

import (
	"context"
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/resilience"
)

type PaymentRequest struct {
	TransactionID string            `json:"transaction_id"`
	Method        string            `json:"method"`
	Amount        float64           `json:"amount"`
	Details       map[string]string `json:"details,omitempty"`
}

type PaymentResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// PaymentGateway is the synchronous contract of the payment collaborator.
// Submit fails closed (absent confirmation the payment is failed); Refund
// failures are logged as requiring manual reconciliation, never retried
// blindly once ambiguous.
type PaymentGateway interface {
	Submit(ctx context.Context, req PaymentRequest) (PaymentResult, error)
	Refund(ctx context.Context, transactionID string, amount float64) (bool, error)
	Status(ctx context.Context, transactionID string) (string, error)
}

type PaymentClient struct {
	caller httpCaller
	policy *resilience.Policy
}

func NewPaymentClient(baseURL, token string, policy *resilience.Policy) *PaymentClient {
	return &PaymentClient{
		caller: httpCaller{baseURL: baseURL, token: token, client: &http.Client{}},
		policy: policy,
	}
}

func (c *PaymentClient) Submit(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (PaymentResult, error) {
		var resp PaymentResult
		if err := c.caller.postJSON(ctx, "/internal/payments", req, &resp); err != nil {
			return PaymentResult{}, err
		}
		return resp, nil
	})
}

func (c *PaymentClient) Refund(ctx context.Context, transactionID string, amount float64) (bool, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (bool, error) {
		var resp struct {
			Success bool `json:"success"`
		}
		body := map[string]any{"transaction_id": transactionID, "amount": amount}
		if err := c.caller.postJSON(ctx, "/internal/refunds", body, &resp); err != nil {
			return false, err
		}
		return resp.Success, nil
	})
}

// Status queries the authoritative charge state for a transaction. Used by
// the recovery sweeper to resolve ambiguity without waiting for events.
func (c *PaymentClient) Status(ctx context.Context, transactionID string) (string, error) {
	return resilience.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		var resp struct {
			Status string `json:"status"`
		}
		if err := c.caller.getJSON(ctx, "/internal/payments/"+transactionID+"/status", &resp); err != nil {
			return "", err
		}
		return resp.Status, nil
	})
}
