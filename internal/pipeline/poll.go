package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PollPolicy drives a submit-then-poll exchange with a provider.
type PollPolicy struct {
	Interval time.Duration
	// MaxWait bounds the total time spent sleeping between polls.
	MaxWait time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// PollStatus is one answer of the status call.
type PollStatus[T any] struct {
	Done  bool
	Value T
	// State is the provider's own status string, kept for logging.
	State string
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll submits once, then asks for the status right away and after every
// interval until the provider reports a terminal state. A provider failure is
// returned as is. Running out of MaxWait yields a Timeout error. Transient
// errors from the status call do not stop the loop.
func Poll[H any, T any](
	ctx context.Context,
	policy PollPolicy,
	submit func(ctx context.Context) (H, error),
	status func(ctx context.Context, handle H) (PollStatus[T], error),
) (T, error) {
	var zero T

	if policy.Interval <= 0 {
		return zero, Permanent(errors.New("poll interval must be positive"))
	}

	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	handle, err := submit(ctx)
	if err != nil {
		return zero, err
	}

	var waited time.Duration
	for waited < policy.MaxWait {
		st, err := status(ctx, handle)
		switch {
		case err != nil && !IsRetryable(err):
			return zero, err
		case err != nil:
			zap.S().Named("poll").Warnw("status check failed, will poll again", "handle", handle, "error", err)
		case st.Done:
			return st.Value, nil
		}

		if err := sleep(ctx, policy.Interval); err != nil {
			return zero, err
		}
		waited += policy.Interval
	}

	return zero, Timeout(fmt.Errorf("generation %v did not finish within %s", handle, policy.MaxWait))
}
