// Package ratelimit throttles outbound exchange API calls to a configured
// request budget per time window.
//
// Exchanges ban API keys that exceed their published request budgets, so a
// single shared limiter sits in front of every outbound call the process
// makes: the control loop, the exchange adapters, and any collaborator
// issuing calls from its own goroutine all pass through the same Wait gate.
// The limiter serializes admission only, never the I/O itself; callers block
// until their slot opens, then perform their request concurrently.
//
// The implementation wraps Uber's leaky-bucket limiter configured without
// slack, which spaces admissions evenly across the window. For a budget of
// N requests per window W this guarantees the k-th request (0-indexed) is
// admitted no earlier than k*W/N after the first, which in turn satisfies
// the coarser bound of floor(k/N)*W that the exchange budget requires.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a request budget: Limit operations allowed per Interval.
type Rate struct {
	// Limit is the maximum number of operations per Interval.
	Limit int

	// Interval is the window the budget applies to, e.g. time.Second
	// for a "6 requests per second" exchange budget.
	Interval time.Duration
}

// RateLimiter admits operations under a configured request budget.
//
// Implementations must be safe for concurrent use: multiple goroutines
// sharing one credential set call Wait before every outbound request.
type RateLimiter interface {
	// Wait blocks until the caller's admission slot opens, then returns,
	// permitting exactly one subsequent outbound call. It returns an error
	// only when ctx is already cancelled; otherwise it never fails, it
	// only delays.
	Wait(ctx context.Context) error

	// SetLimit replaces the request budget at runtime. Returns an error
	// if the rate is non-positive.
	SetLimit(limit Rate) error
}

// windowLimiter implements RateLimiter using Uber's leaky-bucket limiter.
type windowLimiter struct {
	mu      sync.Mutex
	limiter ratelimit.Limiter
	rate    Rate
}

// NewWindowLimiter creates a rate limiter admitting rate.Limit operations
// per rate.Interval, evenly spaced with no initial burst allowance.
//
//	limiter := ratelimit.NewWindowLimiter(ratelimit.Rate{
//		Limit:    6,
//		Interval: time.Second,
//	})
//
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//	// perform the API call
func NewWindowLimiter(rate Rate) RateLimiter {
	return &windowLimiter{
		limiter: newBucket(rate),
		rate:    rate,
	}
}

func newBucket(rate Rate) ratelimit.Limiter {
	// WithoutSlack disables the burst allowance; without it the first
	// few calls would be admitted immediately and overrun the window.
	return ratelimit.New(rate.Limit, ratelimit.Per(rate.Interval), ratelimit.WithoutSlack)
}

// Wait implements the RateLimiter interface.
func (l *windowLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
	}

	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	limiter.Take()
	return nil
}

// SetLimit implements the RateLimiter interface.
func (l *windowLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = newBucket(rate)
	l.rate = rate
	return nil
}
