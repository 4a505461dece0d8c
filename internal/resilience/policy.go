package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull is returned when the per-collaborator concurrency cap is
// exhausted. The call is shed before it is attempted, so it does not count
// against the circuit breaker.
var ErrBulkheadFull = errors.New("bulkhead: too many concurrent calls")

type Settings struct {
	CallTimeout         time.Duration
	MaxAttempts         int
	RetryBackoff        time.Duration
	BreakerInterval     time.Duration
	BreakerCooldown     time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BulkheadLimit       int64
}

// Policy wraps synchronous calls to one collaborator with three composed
// layers, outermost first: bulkhead, circuit breaker, bounded retry.
type Policy struct {
	name     string
	settings Settings
	sem      *semaphore.Weighted
	cb       *gobreaker.CircuitBreaker
}

func NewPolicy(name string, s Settings, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one trial call probes recovery in half-open state
		Interval:    s.BreakerInterval,
		Timeout:     s.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.BreakerMinRequests && failureRatio >= s.BreakerFailureRatio
		},
		// Business failures are real answers from the collaborator; only
		// transient infrastructure errors may trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Policy{
		name:     name,
		settings: s,
		sem:      semaphore.NewWeighted(s.BulkheadLimit),
		cb:       cb,
	}
}

func (p *Policy) Name() string { return p.name }

// Do executes op under the policy. On any error the caller must substitute
// its call-site fallback value; Do never invents one.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !p.sem.TryAcquire(1) {
		return zero, ErrBulkheadFull
	}
	defer p.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt < p.settings.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := p.settings.RetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		res, err := p.cb.Execute(func() (any, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.settings.CallTimeout)
			defer cancel()
			return op(callCtx)
		})
		if err == nil {
			return res.(T), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Short-circuit straight to the fallback; retrying an open
			// circuit only burns the cooldown.
			return zero, err
		}
		if !IsTransient(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
