package fetch

import (
	"errors"
	"fmt"
)

// Failure classes surfaced by the fetcher. Callers treat any of these as
// "zero observations from this target" and continue.
var (
	// ErrExhausted means every direct attempt failed and the retry budget
	// ran out.
	ErrExhausted = errors.New("retries exhausted")

	// ErrNoFallback means the origin is blocked and both fallback
	// strategies failed.
	ErrNoFallback = errors.New("all fallback strategies failed")

	// ErrFallbackUnavailable means the fallback services themselves are
	// tripped open and calls were not attempted.
	ErrFallbackUnavailable = errors.New("fallback services unavailable")
)

// StatusError reports a non-success HTTP status from a direct attempt.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
