package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/ratelimit"
	"golang-stock-trader/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedOracle struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedOracle) Complete(ctx context.Context, systemContext, userContext string, temperature float32, expectJSON bool) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	return s.replies[i], nil
}

func newTestGuard(t *testing.T, next ReasoningOracle) ReasoningOracle {
	t.Helper()
	limiter, err := ratelimit.NewLimiter(1000, time.Second)
	require.NoError(t, err)
	policy := retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
	return NewGuardedOracle(next, limiter, policy, logger.NewNop())
}

func TestGuardedOracleRetriesTransientAndEmpty(t *testing.T) {
	next := &scriptedOracle{
		replies: []string{"", "   ", `{"ok":true}`},
		errs:    []error{apperr.New(apperr.KindRateLimited, "op", errors.New("429")), nil, nil},
	}
	oracle := newTestGuard(t, next)

	text, err := oracle.Complete(context.Background(), "sys", "user", 0.5, true)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, 3, next.calls)
}

func TestGuardedOracleFailsFastOnAuth(t *testing.T) {
	next := &scriptedOracle{
		replies: []string{"", "never"},
		errs:    []error{apperr.New(apperr.KindAuth, "op", errors.New("401"))},
	}
	oracle := newTestGuard(t, next)

	_, err := oracle.Complete(context.Background(), "sys", "user", 0.5, true)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, 1, next.calls)
}

func TestGuardedOracleGivesUpAfterBudget(t *testing.T) {
	next := &scriptedOracle{replies: []string{"", "", "", ""}}
	oracle := newTestGuard(t, next)

	_, err := oracle.Complete(context.Background(), "sys", "user", 0.5, false)
	require.Error(t, err)
	assert.Equal(t, 3, next.calls)
}
