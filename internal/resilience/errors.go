package resilience

import (
	"context"
	"errors"
)

// permanentError marks an error that retrying cannot fix: a definitive
// business answer (declined payment, unknown product) or a malformed request.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the policy neither retries it nor counts it as a
// collaborator failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether an error is worth retrying. Cancellation of the
// parent context is not transient: the caller gave up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
