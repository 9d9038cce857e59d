// Package ratelimiter throttles outgoing RPCs with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate. It is safe for concurrent use.
//
// The bucket holds up to burst tokens and refills at requestsPerSecond.
// Every RPC takes one token; when the bucket is empty the caller waits.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New returns a limiter allowing requestsPerSecond sustained and burst
// immediately. A zero rate means unlimited. A zero burst defaults to the
// rate, so a fresh limiter can send one second's worth of requests at once.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow takes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done. It returns an
// error without waiting when ctx's deadline would pass first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
