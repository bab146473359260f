package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often and how long an operation is retried.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryPolicy is two attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the delay before attempt n (n >= 1 is the first retry):
// base * 2^(n-1) capped at MaxDelay, plus random jitter.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay << (n - 1)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d
}

// Retry runs fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. onRetry, when set, is called before each sleep.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
