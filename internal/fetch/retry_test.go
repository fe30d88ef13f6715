package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func TestShouldRetry(t *testing.T) {
	policy := NewRetryPolicy()

	tests := []struct {
		name       string
		attempt    int
		statusCode int
		err        error
		want       bool
	}{
		{name: "500 retries", attempt: 0, statusCode: 500, want: true},
		{name: "502 retries", attempt: 1, statusCode: 502, want: true},
		{name: "503 retries", attempt: 0, statusCode: 503, want: true},
		{name: "429 retries", attempt: 0, statusCode: 429, want: true},
		{name: "408 retries", attempt: 0, statusCode: 408, want: true},
		{name: "404 never retries", attempt: 0, statusCode: 404, want: false},
		{name: "403 never retries", attempt: 0, statusCode: 403, want: false},
		{name: "401 never retries", attempt: 0, statusCode: 401, want: false},
		{name: "200 without error", attempt: 0, statusCode: 200, want: false},
		{name: "attempts exhausted", attempt: 3, statusCode: 500, want: false},
		{name: "deadline exceeded retries", attempt: 0, err: context.DeadlineExceeded, want: true},
		{name: "plain error does not retry", attempt: 0, err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ShouldRetry(tt.attempt, tt.statusCode, tt.err)
			if got != tt.want {
				t.Errorf("ShouldRetry(%d, %d, %v) = %v, want %v", tt.attempt, tt.statusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	policy := NewRetryPolicy()

	for attempt := 0; attempt < 5; attempt++ {
		for i := 0; i < 50; i++ {
			backoff := policy.CalculateBackoff(attempt)
			if backoff <= 0 {
				t.Fatalf("attempt %d: backoff %v not positive", attempt, backoff)
			}
			// Cap plus the 25% jitter band.
			if backoff > time.Duration(float64(policy.MaxBackoff)*1.25) {
				t.Fatalf("attempt %d: backoff %v above jittered cap", attempt, backoff)
			}
		}
	}
}

func TestExecuteWithRetryStopsOnClientError(t *testing.T) {
	policy := NewRetryPolicy()
	logger := arbor.NewLogger()

	calls := 0
	status, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
		calls++
		return 404, errors.New("not found")
	})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1 for a 404", calls)
	}
	if status != 404 || err == nil {
		t.Errorf("ExecuteWithRetry() = %d, %v", status, err)
	}
}

func TestExecuteWithRetryRecovers(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:          3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           5 * time.Millisecond,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{503},
	}
	logger := arbor.NewLogger()

	calls := 0
	status, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
		calls++
		if calls < 3 {
			return 503, errors.New("unavailable")
		}
		return 200, nil
	})

	if err != nil {
		t.Fatalf("ExecuteWithRetry() error = %v", err)
	}
	if status != 200 || calls != 3 {
		t.Errorf("status = %d after %d calls, want 200 after 3", status, calls)
	}
}
