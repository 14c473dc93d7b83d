package ai

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// RetryPolicy retries one provider call with exponential backoff. Only
// transient and malformed outcomes are retried; a malformed response gets a
// single retry and a repeat is treated as transient from then on.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// CallTimeout bounds each attempt; zero leaves attempts bounded only by ctx.
	CallTimeout time.Duration
}

// RetryPolicyFor derives the policy from a provider's configuration.
func RetryPolicyFor(cfg domain.ProviderConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		CallTimeout: cfg.CallTimeout,
	}
}

// CallFunc performs a single provider attempt.
type CallFunc func(ctx context.Context) (domain.AnalysisResult, error)

// newBackOff returns the delay schedule base, 2*base, 4*base ... capped at
// BackoffMax. A non-positive BackoffMax leaves the schedule uncapped, matching
// domain.ProviderConfig.WorstCaseLatency.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.BackoffBase
	if expo.InitialInterval <= 0 {
		expo.InitialInterval = time.Millisecond
	}
	switch {
	case p.BackoffMax <= 0:
		expo.MaxInterval = time.Duration(math.MaxInt64)
	case p.BackoffMax < expo.InitialInterval:
		expo.MaxInterval = expo.InitialInterval
	default:
		expo.MaxInterval = p.BackoffMax
	}
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(retries)), ctx)
}

// Do runs fn until it succeeds, fails permanently or retries are exhausted.
// It returns the number of attempts made. When ctx ends during a backoff wait
// the last provider error is returned rather than the context error.
func (p RetryPolicy) Do(ctx context.Context, fn CallFunc) (domain.AnalysisResult, int, error) {
	var (
		result    domain.AnalysisResult
		attempts  int
		malformed int
		lastErr   error
	)

	op := func() error {
		attempts++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		res, err := fn(callCtx)
		cancel()
		if err == nil {
			result = res
			return nil
		}

		kind := domain.KindOf(err)
		if kind == domain.KindMalformed {
			malformed++
			if malformed > 1 {
				err = reclassify(err, domain.KindTransient)
				kind = domain.KindTransient
			}
		}
		lastErr = err
		if !kind.Retryable() || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("provider attempt failed, backing off",
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	err := backoff.RetryNotify(op, p.newBackOff(ctx), notify)
	if err == nil {
		return result, attempts, nil
	}
	if lastErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && !errors.Is(lastErr, err) {
		return domain.AnalysisResult{}, attempts, lastErr
	}
	return domain.AnalysisResult{}, attempts, err
}

func reclassify(err error, kind domain.ErrorKind) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return domain.NewProviderError(pe.Provider, kind, pe.StatusCode, pe.Err)
	}
	return domain.NewProviderError("", kind, 0, err)
}
