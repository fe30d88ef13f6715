package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter enforces per-host politeness with token buckets. Refill is
// requests-per-minute converted to per-second; capacity is the burst.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rpm      int
	burst    int
}

// NewHostLimiter creates a limiter registry with the default per-host rate.
func NewHostLimiter(requestsPerMinute, burst int) *HostLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rpm:      requestsPerMinute,
		burst:    burst,
	}
}

// Wait blocks until the host's bucket grants a token, or the context ends.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}
	return h.limiterFor(host).Wait(ctx)
}

// SetHostRate overrides the bucket for one host, e.g. from an API source's
// throttle config or a robots crawl-delay.
func (h *HostLimiter) SetHostRate(host string, requestsPerMinute, burst int) {
	if requestsPerMinute <= 0 || burst <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limiters[host] = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(h.rpm)/60.0), h.burst)
		h.limiters[host] = limiter
	}
	return limiter
}
