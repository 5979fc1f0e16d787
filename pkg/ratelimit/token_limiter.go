package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenLimiter budgets model tokens per minute.
type TokenLimiter struct {
	limiter *rate.Limiter
	max     int
}

func NewTokenLimiter(maxTokensPerMinute int) *TokenLimiter {
	if maxTokensPerMinute <= 0 {
		return &TokenLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	perSecond := rate.Limit(float64(maxTokensPerMinute) / time.Minute.Seconds())
	return &TokenLimiter{
		limiter: rate.NewLimiter(perSecond, maxTokensPerMinute),
		max:     maxTokensPerMinute,
	}
}

// Wait blocks until tokens can be spent. Requests larger than the per-minute
// budget wait for a full bucket instead of failing.
func (t *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	if t.max > 0 && tokens > t.max {
		tokens = t.max
	}
	if tokens <= 0 {
		return nil
	}
	return t.limiter.WaitN(ctx, tokens)
}

func (t *TokenLimiter) GetRemaining() int {
	if t.max <= 0 {
		return 0
	}
	return int(t.limiter.Tokens())
}
