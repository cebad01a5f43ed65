package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures one inference call's retry behavior: how many
// attempts, how the delay between them grows, and which errors even
// qualify for a retry.
type RetryPolicy struct {
	MaxRetries      int                                               // max retry attempts (0 disables retrying)
	InitialDelay    time.Duration                                     // delay before the first retry
	MaxDelay        time.Duration                                     // delay ceiling regardless of attempt count
	Multiplier      float64                                           // exponential backoff growth factor
	Jitter          bool                                              // randomize delay by +-25% to avoid retry storms
	RetryableErrors []error                                           // empty means every error is retryable
	OnRetry         func(attempt int, err error, delay time.Duration) // observability hook, fired before each wait
}

// DefaultRetryPolicy returns the retry shape used for classify/batch-classify
// calls against the ML inference service.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes a function under a RetryPolicy.
type Retryer interface {
	// Do runs fn, retrying per policy on failure.
	Do(ctx context.Context, fn func() error) error

	// DoWithResult runs fn and returns its result, retrying per policy on failure.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

// backoffRetryer is the exponential-backoff Retryer used by inference.Client.
type backoffRetryer struct {
	policy *RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer builds a Retryer from policy, filling in sane defaults
// for any zero-valued field so a caller can pass a partially-populated
// RetryPolicy.
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &backoffRetryer{
		policy: policy,
		logger: logger,
	}
}

// Do implements Retryer.
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult implements Retryer: exponential backoff, optional jitter,
// and an error-type filter that can exempt some failures from retrying at
// all (validation errors, circuit-open short-circuits).
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)

			r.logger.Debug("retrying inference call",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = fn()

		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return nil, lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	// Wrapped with %w, not discarded: the last error's *types.Error identity
	// (code, retryable flag) must survive for types.IsCode/IsRetryable to see
	// past this wrapper after exhaustion.
	return nil, fmt.Errorf("exhausted %d retries: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay applies exponential backoff (delay = initial *
// multiplier^(attempt-1)), clamps to MaxDelay, and optionally jitters by
// +-25% to keep concurrent callers from retrying in lockstep.
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))

	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}

	return time.Duration(delay)
}

// isRetryable reports whether err should trigger another attempt.
func (r *backoffRetryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if len(r.policy.RetryableErrors) == 0 {
		return true
	}

	if IsRetryableError(err) {
		return true
	}

	for _, retryableErr := range r.policy.RetryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}

// RetryableError marks an error as eligible for retry regardless of its
// underlying type, for callers that want to opt an error into retrying
// without adding it to RetryPolicy.RetryableErrors.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryableError reports whether err was wrapped by WrapRetryable.
//
// This is distinct from types.IsRetryable: that checks *types.Error's
// Retryable field, this checks the *RetryableError wrapper.
func IsRetryableError(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// IsRetryable is an alias for IsRetryableError.
//
// Deprecated: use IsRetryableError to avoid confusion with types.IsRetryable.
var IsRetryable = IsRetryableError

// WrapRetryable marks err as retryable via the RetryableError wrapper.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
