package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// BackoffPolicy computes retry waits that double per attempt:
// base * 2^attempt, capped at max.
type BackoffPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewBackoffPolicy builds a policy. Zero values fall back to three
// attempts, a one second base, and a thirty second cap.
func NewBackoffPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *BackoffPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &BackoffPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts returns the attempt budget.
func (p *BackoffPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Backoff returns the wait before retrying after the given zero-based
// attempt: base on retry of attempt 0 doubles each subsequent attempt.
func (p *BackoffPolicy) Backoff(attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt+1)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	return delay
}

// ShouldRetry classifies an error as retryable. Context cancellation and
// access-denial are never retried; network errors, timeouts, and
// non-blocking HTTP error statuses are.
func (p *BackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode != http.StatusForbidden
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return true
}

// IsAccessDenied reports whether the error is an access-denial signal that
// must trip the origin circuit breaker instead of retrying.
func IsAccessDenied(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden
}
