package pipeline

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds one adapter call.
type RetryPolicy struct {
	// Attempts is the total number of calls, at least 1.
	Attempts uint64
	// Backoff is the first delay, doubled after every retry.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// AttemptTimeout applies to each call separately. Zero means no timeout.
	AttemptTimeout time.Duration
	// OnRetry is called before each retry.
	OnRetry func(attempt int, err error)
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Backoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}
	retries := uint64(0)
	if p.Attempts > 1 {
		retries = p.Attempts - 1
	}
	return retry.WithMaxRetries(retries, b)
}

// Retry calls fn until it succeeds, fails with a non transient error, or the
// attempt budget is spent. The last error is returned unwrapped.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out     T
		attempt int
		lastErr error
	)

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 && policy.OnRetry != nil {
			policy.OnRetry(attempt, lastErr)
		}

		callCtx := ctx
		if policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
			defer cancel()
		}

		v, err := fn(callCtx)
		if err != nil {
			lastErr = err
			// the caller's own context ending is never retried
			if IsRetryable(err) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		out = v
		return nil
	})

	return out, err
}
