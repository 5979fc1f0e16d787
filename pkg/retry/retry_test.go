package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-stock-trader/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(attempts int, waits *[]time.Duration) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		sleep: func(ctx context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return ctx.Err()
		},
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := Policy{InitialInterval: 2 * time.Second, MaxInterval: 30 * time.Second, Multiplier: 2}

	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 16*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(5))
	assert.Equal(t, 30*time.Second, p.Backoff(50))
}

func TestDo(t *testing.T) {
	transient := apperr.New(apperr.KindTransient, "op", errors.New("503"))
	auth := apperr.New(apperr.KindAuth, "op", errors.New("401"))

	tests := []struct {
		name      string
		results   []error
		wantCalls int
		wantWaits []time.Duration
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			results:   []error{nil},
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			results:   []error{transient, transient, nil},
			wantCalls: 3,
			wantWaits: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:      "auth fails fast",
			results:   []error{auth, nil},
			wantCalls: 1,
			wantErr:   auth,
		},
		{
			name:      "budget exhausted",
			results:   []error{transient, transient, transient, nil},
			wantCalls: 3,
			wantWaits: []time.Duration{2 * time.Second, 4 * time.Second},
			wantErr:   transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			p := newTestPolicy(3, &waits)

			calls := 0
			err := p.Do(context.Background(), func(ctx context.Context) error {
				res := tt.results[calls]
				calls++
				return res
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantWaits, waits)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	var waits []time.Duration
	p := newTestPolicy(5, &waits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return apperr.New(apperr.KindRateLimited, "op", errors.New("429"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperr.Is(err, apperr.KindRateLimited))
}

func TestDoValue(t *testing.T) {
	var waits []time.Duration
	p := newTestPolicy(3, &waits)

	calls := 0
	v, err := DoValue(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", apperr.New(apperr.KindTransient, "op", errors.New("timeout"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Len(t, waits, 1)
}
