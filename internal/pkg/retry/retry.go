// Package retry provides a reusable retry policy for transient failures.
//
// A Policy bounds the number of attempts, the pause between them and the time
// a single attempt may take. Callers classify errors with an IsRetryableFunc so
// that deterministic failures return immediately without consuming the budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted is wrapped into the error returned when every attempt failed
// with a retryable error.
var ErrExhausted = errors.New("retries exhausted")

// Policy holds configuration for retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialBackoff is the pause before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps exponential growth. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to the pause after each retry.
	// 1.0 (or anything <= 1) keeps the pause fixed.
	BackoffFactor float64

	// AttemptTimeout bounds a single attempt. Zero means the attempt only
	// inherits the caller's deadline.
	AttemptTimeout time.Duration

	// Jitter adds rand(0, backoff) to every pause.
	Jitter bool
}

// Fixed returns a policy with a constant pause between attempts.
func Fixed(attempts int, backoff, attemptTimeout time.Duration) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: backoff,
		BackoffFactor:  1.0,
		AttemptTimeout: attemptTimeout,
	}
}

// Exponential returns a policy whose pause doubles up to maxBackoff.
func Exponential(attempts int, initial, maxBackoff time.Duration) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// IsRetryableFunc determines if an error should trigger another attempt.
type IsRetryableFunc func(error) bool

// OnRetryFunc is called before each retry (optional, for logging/metrics).
// attempt is the 1-indexed number of the attempt about to run.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Do runs fn until it succeeds, returns a non-retryable error, or the policy's
// attempts are used up. fn receives a context bounded by AttemptTimeout and
// the 1-indexed attempt number.
//
// When every attempt fails the returned error wraps both ErrExhausted and the
// last error, so errors.Is works for either.
func Do[T any](
	ctx context.Context,
	p Policy,
	isRetryable IsRetryableFunc,
	onRetry OnRetryFunc,
	fn func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			pause := backoff
			if p.Jitter && pause > 0 {
				pause += time.Duration(rand.Int63n(int64(pause)))
			}

			if onRetry != nil {
				onRetry(attempt, lastErr, pause)
			}

			if err := sleep(ctx, pause); err != nil {
				return zero, fmt.Errorf("context cancelled while retrying: %w", err)
			}

			if p.BackoffFactor > 1 {
				backoff = time.Duration(float64(backoff) * p.BackoffFactor)
				if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
					backoff = p.MaxBackoff
				}
			}
		}

		result, err := runAttempt(ctx, p.AttemptTimeout, attempt, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled: %w", errors.Join(ctx.Err(), err))
		}
		if !isRetryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, fn func(context.Context, int) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
