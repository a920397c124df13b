package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-endpoint rate limiting using token bucket algorithm.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	overrides  map[string]rate.Limit
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a new rate limiter with the specified rate and burst.
// rate is requests per second, burst is the maximum burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		overrides:  make(map[string]rate.Limit),
		rateLimit:  rate.Limit(ratePerSecond),
		burstLimit: burst,
	}
}

// DefaultRateLimiter returns a rate limiter with default settings.
// Default: 10 requests/second, burst of 20. Public SVM endpoints throttle
// well above this.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(10, 20)
}

// SetEndpointRate overrides the rate for one endpoint, for networks whose
// configuration names a tighter or looser limit. A non-positive value
// restores the default.
func (r *RateLimiter) SetEndpointRate(endpoint string, ratePerSecond float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ratePerSecond <= 0 {
		delete(r.overrides, endpoint)
	} else {
		r.overrides[endpoint] = rate.Limit(ratePerSecond)
	}
	if l, ok := r.limiters[endpoint]; ok {
		l.SetLimit(r.limitFor(endpoint))
	}
}

// Allow checks if a request to the endpoint is allowed.
// Returns true if the request should proceed, false if it should be rate limited.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.getLimiter(endpoint).Allow()
}

// Wait blocks until a request to the endpoint is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.getLimiter(endpoint).Wait(ctx)
}

func (r *RateLimiter) limitFor(endpoint string) rate.Limit {
	if l, ok := r.overrides[endpoint]; ok {
		return l
	}
	return r.rateLimit
}

// getLimiter returns the limiter for the given endpoint, creating one if needed.
func (r *RateLimiter) getLimiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[endpoint]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = r.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.limitFor(endpoint), r.burstLimit)
	r.limiters[endpoint] = limiter
	return limiter
}
