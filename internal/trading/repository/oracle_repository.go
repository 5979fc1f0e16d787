package repository

import (
	"context"
	"strings"
	"time"

	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/ratelimit"
	"golang-stock-trader/pkg/retry"
)

// guardedOracle paces every attempt through the shared limiter and retries
// retryable failures.
type guardedOracle struct {
	next    ReasoningOracle
	limiter *ratelimit.Limiter
	policy  retry.Policy
	logger  *logger.Logger
}

// NewGuardedOracle wraps next with the process-wide rate limiter and the
// oracle retry policy. Every stage must share the returned instance.
func NewGuardedOracle(next ReasoningOracle, limiter *ratelimit.Limiter, policy retry.Policy, log *logger.Logger) ReasoningOracle {
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.Warn("Retrying reasoning oracle call",
				logger.IntField("attempt", attempt),
				logger.Field("wait", wait),
				logger.StringField("error_kind", apperr.KindOf(err).String()),
				logger.ErrorField(err))
		}
	}
	return &guardedOracle{next: next, limiter: limiter, policy: policy, logger: log}
}

func (o *guardedOracle) Complete(ctx context.Context, systemContext, userContext string, temperature float32, expectJSON bool) (string, error) {
	text, err := retry.DoValue(ctx, o.policy, func(ctx context.Context) (string, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", err
		}
		text, err := o.next.Complete(ctx, systemContext, userContext, temperature, expectJSON)
		if err != nil {
			return "", err
		}
		return requireContent("oracle.Complete", text)
	})
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindAuth {
			o.logger.ErrorContext(ctx, "Reasoning oracle rejected credentials",
				logger.StringField("error_kind", kind.String()), logger.ErrorField(err))
		} else {
			o.logger.ErrorContext(ctx, "Reasoning oracle call failed",
				logger.StringField("error_kind", kind.String()), logger.ErrorField(err))
		}
		return "", err
	}
	return text, nil
}

// requireContent rejects blank completions. An empty answer is treated as a
// transient provider hiccup.
func requireContent(op, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperr.Errorf(apperr.KindTransient, op, "empty response from reasoning oracle")
	}
	return text, nil
}
