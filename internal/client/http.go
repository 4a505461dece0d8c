package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/resilience"
)

// internalHeader identifies the caller as an authorized internal service.
// Issuing and validating the token is the edge's concern, not ours.
const internalHeader = "X-Internal-Service"

type httpCaller struct {
	baseURL string
	token   string
	client  *http.Client
}

func (c *httpCaller) postJSON(ctx context.Context, path string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("call %s: status %d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		// A definitive rejection; retrying will not change the answer.
		return resilience.Permanent(fmt.Errorf("call %s: status %d", path, resp.StatusCode))
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *httpCaller) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set(internalHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("call %s: status %d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return resilience.Permanent(fmt.Errorf("call %s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
