// Package lock provides named advisory locks shared by every process that
// talks to the same Postgres database or Redis instance.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
)

// Locker runs fn while holding the named lock. If the lock cannot be taken
// before the acquire timeout, fn is not run and a lock_timeout error is
// returned. The lock is released on every exit path of fn, panics included.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Options controls acquisition polling.
type Options struct {
	RetryInterval time.Duration
	Timeout       time.Duration
}

func (o Options) withDefaults() Options {
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	return o
}

// Key maps a lock name onto the signed 64-bit key space used by Postgres
// advisory locks.
func Key(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// acquire polls try until it reports success, the timeout elapses or ctx is done.
func acquire(ctx context.Context, name string, opts Options, try func(ctx context.Context) (bool, error)) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	for {
		ok, err := try(ctx)
		if err != nil {
			return fmt.Errorf("failed to try lock %q: %w", name, err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return apperr.Errorf(apperr.KindLockTimeout, "lock.acquire", "could not acquire lock %q within %s", name, opts.Timeout)
		}

		wait := opts.RetryInterval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("lock %q: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
}

// release runs unlock with a context that survives cancellation of the
// guarded work and logs failures instead of returning them.
func release(ctx context.Context, log *logger.Logger, name string, unlock func(ctx context.Context) error) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := unlock(releaseCtx); err != nil {
		log.Warn("Failed to release lock", logger.StringField("lock", name), logger.ErrorField(err))
		return
	}
	log.Debug("Lock released", logger.StringField("lock", name))
}
