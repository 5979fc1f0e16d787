// Package retry runs calls to unreliable services with bounded exponential
// backoff. Only errors that apperr classifies as retryable consume attempts;
// everything else is returned immediately.
package retry

import (
	"context"
	"fmt"
	"time"

	"golang-stock-trader/pkg/apperr"
)

// Policy describes how many times and how far apart an operation is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, wait time.Duration, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait before the attempt following the given one (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	wait := float64(p.InitialInterval)
	for i := 1; i < attempt; i++ {
		wait *= multiplier
		if p.MaxInterval > 0 && wait >= float64(p.MaxInterval) {
			return p.MaxInterval
		}
	}
	if p.MaxInterval > 0 && time.Duration(wait) > p.MaxInterval {
		return p.MaxInterval
	}
	return time.Duration(wait)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done. The last error is returned wrapped.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
