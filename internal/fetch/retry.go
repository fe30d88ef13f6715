package fetch

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"slices"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy is the transport retry contract: transient failures (5xx,
// 408, 429, timeouts, connection resets) re-enter the loop with
// exponential backoff; other client errors fail on the first attempt.
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
}

// NewRetryPolicy returns the default policy: 3 attempts, 1s initial
// backoff doubling to a 10s cap.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:          3,
		InitialBackoff:       time.Second,
		MaxBackoff:           10 * time.Second,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

func (p *RetryPolicy) retryableStatus(statusCode int) bool {
	return slices.Contains(p.RetryableStatusCodes, statusCode)
}

// ShouldRetry reports whether another attempt is allowed for the given
// attempt index, status code, and transport error.
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if statusCode > 0 {
		if p.retryableStatus(statusCode) {
			return true
		}
		if statusCode >= 400 && statusCode < 500 {
			return false
		}
	}
	return retryableError(err)
}

// CalculateBackoff returns the exponential backoff for an attempt with a
// 25% jitter band either side.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	base := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	base = math.Min(base, float64(p.MaxBackoff))
	base += base * 0.25 * (rand.Float64()*2 - 1)
	if base < 0 {
		base = float64(p.InitialBackoff)
	}
	return time.Duration(base)
}

// ExecuteWithRetry drives fn through the retry loop. The returned status
// and error come from the final attempt.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, fn func() (int, error)) (int, error) {
	var status int
	var err error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		status, err = fn()
		if err == nil && !p.retryableStatus(status) {
			return status, nil
		}
		if !p.ShouldRetry(attempt, status, err) {
			if err != nil {
				logger.Debug().
					Int("attempt", attempt+1).
					Int("status_code", status).
					Err(err).
					Msg("Non-retryable failure")
			}
			return status, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		backoff := p.CalculateBackoff(attempt)
		logger.Debug().
			Int("attempt", attempt+1).
			Int("status_code", status).
			Err(err).
			Dur("backoff", backoff).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(backoff):
		}
	}

	logger.Warn().
		Int("max_attempts", p.MaxAttempts).
		Int("status_code", status).
		Err(err).
		Msg("Retry budget exhausted")

	return status, err
}

// retryableError matches timeouts and connection-level failures.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
