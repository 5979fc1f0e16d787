package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces calls at least period/maxCalls apart. It is safe for
// concurrent use; every Wait blocks until the caller's turn.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewLimiter allows at most maxCalls per period.
func NewLimiter(maxCalls int, period time.Duration) (*Limiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("max calls must be positive, got %d", maxCalls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %s", period)
	}

	interval := period / time.Duration(maxCalls)
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}, nil
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Interval is the minimum spacing between two calls.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
