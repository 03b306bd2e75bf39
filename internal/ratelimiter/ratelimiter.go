// Package ratelimiter provides token-bucket throttling for outbound
// remote requests.
//
// The media server is a shared resource: an aggressive client scrolling
// through a large gallery can issue hundreds of artifact downloads per
// second. The fetch and listing paths run every remote call through a
// limiter so sustained throughput stays inside a configured budget while
// short bursts (a screenful of thumbnails) pass without queuing.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the configuration
// conventions used across the client: zero means unlimited.
//
// Thread safety: all methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a rate limiter allowing requestsPerSecond sustained with
// the given burst capacity. Burst should typically be >= the sustained
// rate; requestsPerSecond = 0 disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		// Unlimited: rate.Inf has edge cases, a large finite limit does not.
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed right now, consuming a
// token if so. Fast path: never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
// The throttled paths use this so a burst of thumbnail requests queues
// instead of failing.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
