package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/interfaces"
)

// ErrBreakerOpen is returned when the circuit breaker rejects a call.
var ErrBreakerOpen = fmt.Errorf("llm circuit breaker is open")

// Breaker states.
const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

const (
	breakerWindow    = 5 * time.Minute
	breakerMinCalls  = 10
	breakerErrorRate = 0.10
	breakerCooldown  = 60 * time.Second
)

type callOutcome struct {
	at     time.Time
	failed bool
}

// CircuitBreaker wraps an LLM service with a sliding-window circuit
// breaker. When at least ten calls landed in the five-minute window and
// one in ten failed, the breaker opens for sixty seconds. The first call
// after the cooldown is admitted half-open; its success closes the
// breaker, its failure reopens it.
type CircuitBreaker struct {
	inner  interfaces.LLMService
	logger arbor.ILogger

	mu       sync.Mutex
	state    string
	openedAt time.Time
	window   []callOutcome
}

// NewCircuitBreaker wraps the given service.
func NewCircuitBreaker(inner interfaces.LLMService, logger arbor.ILogger) *CircuitBreaker {
	return &CircuitBreaker{
		inner:  inner,
		logger: logger,
		state:  stateClosed,
	}
}

// ProviderName delegates to the wrapped service.
func (b *CircuitBreaker) ProviderName() string {
	return b.inner.ProviderName()
}

// State returns the current breaker state for diagnostics.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Chat admits the call if the breaker allows it and records the outcome.
func (b *CircuitBreaker) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if !b.admit() {
		return "", ErrBreakerOpen
	}

	response, err := b.inner.Chat(ctx, messages)
	b.record(err)
	return response, err
}

func (b *CircuitBreaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) < breakerCooldown {
			return false
		}
		b.state = stateHalfOpen
		b.logger.Info().Str("provider", b.inner.ProviderName()).Msg("LLM circuit breaker half-open, admitting probe call")
		return true
	default:
		return true
	}
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.window = append(b.window, callOutcome{at: now, failed: err != nil})
	b.prune(now)

	if b.state == stateHalfOpen {
		if err != nil {
			b.open(now)
		} else {
			b.state = stateClosed
			b.logger.Info().Str("provider", b.inner.ProviderName()).Msg("LLM circuit breaker closed")
		}
		return
	}

	calls := len(b.window)
	if calls < breakerMinCalls {
		return
	}
	failures := 0
	for _, c := range b.window {
		if c.failed {
			failures++
		}
	}
	if float64(failures)/float64(calls) >= breakerErrorRate {
		b.open(now)
	}
}

func (b *CircuitBreaker) open(now time.Time) {
	b.state = stateOpen
	b.openedAt = now
	b.logger.Warn().
		Str("provider", b.inner.ProviderName()).
		Int("window_calls", len(b.window)).
		Msg("LLM circuit breaker opened")
}

// prune drops outcomes older than the window.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-breakerWindow)
	idx := 0
	for idx < len(b.window) && b.window[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		b.window = append(b.window[:0], b.window[idx:]...)
	}
}
