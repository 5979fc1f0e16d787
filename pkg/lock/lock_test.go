package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("trading-cycle"), Key("trading-cycle"))
	assert.NotEqual(t, Key("trading-cycle"), Key("other"))
}

func TestAcquire(t *testing.T) {
	opts := Options{RetryInterval: time.Millisecond, Timeout: 50 * time.Millisecond}

	t.Run("acquires after contention clears", func(t *testing.T) {
		tries := 0
		err := acquire(context.Background(), "cycle", opts, func(ctx context.Context) (bool, error) {
			tries++
			return tries == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, tries)
	})

	t.Run("times out instead of proceeding", func(t *testing.T) {
		err := acquire(context.Background(), "cycle", opts, func(ctx context.Context) (bool, error) {
			return false, nil
		})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindLockTimeout))
	})

	t.Run("backend error is returned", func(t *testing.T) {
		boom := errors.New("connection reset")
		err := acquire(context.Background(), "cycle", opts, func(ctx context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("context cancellation stops polling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := acquire(ctx, "cycle", Options{RetryInterval: time.Second, Timeout: time.Minute}, func(ctx context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReleaseSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	release(ctx, logger.NewNop(), "cycle", func(ctx context.Context) error {
		called = true
		return ctx.Err()
	})
	assert.True(t, called)
}

func TestReleaseFailureIsNotFatal(t *testing.T) {
	assert.NotPanics(t, func() {
		release(context.Background(), logger.NewNop(), "cycle", func(ctx context.Context) error {
			return errors.New("unlock failed")
		})
	})
}
