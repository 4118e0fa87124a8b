package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	policy := NewBackoffPolicy(5, time.Second, time.Minute)

	assert.Equal(t, 2*time.Second, policy.Backoff(0))
	assert.Equal(t, 4*time.Second, policy.Backoff(1))
	assert.Equal(t, 8*time.Second, policy.Backoff(2))
}

func TestBackoffRespectsCap(t *testing.T) {
	policy := NewBackoffPolicy(10, time.Second, 5*time.Second)

	assert.Equal(t, 5*time.Second, policy.Backoff(3))
	assert.Equal(t, 5*time.Second, policy.Backoff(9))
}

func TestBackoffDefaults(t *testing.T) {
	policy := NewBackoffPolicy(0, 0, 0)

	assert.Equal(t, 3, policy.MaxAttempts())
	assert.Equal(t, 2*time.Second, policy.Backoff(0))
}

func TestShouldRetryClassification(t *testing.T) {
	policy := NewBackoffPolicy(3, time.Second, time.Minute)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"server error retries", &StatusError{URL: "http://a", StatusCode: http.StatusInternalServerError}, 0, true},
		{"forbidden never retries", &StatusError{URL: "http://a", StatusCode: http.StatusForbidden}, 0, false},
		{"plain network error retries", errors.New("connection reset"), 0, true},
		{"canceled context never retries", context.Canceled, 0, false},
		{"deadline never retries", context.DeadlineExceeded, 0, false},
		{"budget exhausted", errors.New("boom"), 2, false},
		{"nil error", nil, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.ShouldRetry(tc.err, tc.attempt))
		})
	}
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, IsAccessDenied(&StatusError{StatusCode: http.StatusForbidden}))
	assert.False(t, IsAccessDenied(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsAccessDenied(errors.New("timeout")))
}
