package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		CallTimeout:         time.Second,
		MaxAttempts:         3,
		RetryBackoff:        time.Millisecond,
		BreakerInterval:     time.Minute,
		BreakerCooldown:     time.Hour, // stays open for the duration of a test
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.6,
		BulkheadLimit:       2,
	}
}

func TestDoReturnsResult(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	var calls int
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 7, nil
	})

	require.NoError(t, err)
	require.Equal(t, 7, got)
	require.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	var calls int
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("still down")
	})

	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	declined := Permanent(errors.New("card declined"))
	var calls int
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, declined
	})

	require.Error(t, err)
	require.Equal(t, 1, calls, "a definitive answer must not be retried")
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	// One exhausted call records enough transient failures to trip the breaker.
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	})
	require.Error(t, err)

	var calls int
	_, err = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Zero(t, calls, "an open circuit must not reach the collaborator")
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	s := testSettings()
	s.BreakerCooldown = 50 * time.Millisecond
	p := NewPolicy("test", s, nil)

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	})
	require.Error(t, err)

	_, err = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	time.Sleep(80 * time.Millisecond)

	// Half-open: the single trial call goes through and closes the circuit.
	var calls int
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 1, calls, "the trial call must reach the collaborator")

	got, err = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got, "a successful trial call must close the circuit")
}

func TestPermanentErrorsDoNotTripBreaker(t *testing.T) {
	p := NewPolicy("test", testSettings(), nil)

	declined := Permanent(errors.New("card declined"))
	for i := 0; i < 10; i++ {
		_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
			return 0, declined
		})
		require.Error(t, err)
	}

	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err, "business failures are answers, not outages")
	require.Equal(t, 1, got)
}

func TestBulkheadShedsExcessCalls(t *testing.T) {
	s := testSettings()
	s.BulkheadLimit = 1
	p := NewPolicy("test", s, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = Do(context.Background(), p, func(ctx context.Context) (int, error) {
			close(entered)
			<-release
			return 0, nil
		})
	}()

	<-entered
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, ErrBulkheadFull)

	close(release)
	<-done
}

func TestIsTransient(t *testing.T) {
	require.False(t, IsTransient(nil))
	require.False(t, IsTransient(Permanent(errors.New("bad request"))))
	require.False(t, IsTransient(context.Canceled))
	require.True(t, IsTransient(errors.New("i/o timeout")))
	require.True(t, IsTransient(context.DeadlineExceeded), "a timed-out call may succeed next time")

	wrapped := errors.Join(errors.New("outer"), Permanent(errors.New("inner")))
	require.False(t, IsTransient(wrapped))
}
