package browser

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by Poll when the condition does not hold before
// the timeout elapses.
var ErrPollTimeout = errors.New("condition not met before timeout")

// Poll evaluates cond every interval until it returns true, the timeout
// elapses, or ctx is cancelled. The condition is checked once immediately
// before the first tick. A condition error aborts the poll and is returned
// as-is.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(pollCtx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollCtx.Done():
			// Distinguish caller cancellation from our own deadline.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}
