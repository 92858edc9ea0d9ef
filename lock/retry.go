package lock

import (
	"context"
	"time"
)

// DefaultRetryDelay is the pause between attempts when Acquire is given a
// positive timeout
const DefaultRetryDelay = 50 * time.Millisecond

// acquireWithin calls try once and, if timeout is positive, keeps retrying
// every DefaultRetryDelay until it succeeds, fails with an error, or the
// timeout elapses.
func acquireWithin(ctx context.Context, timeout time.Duration, try func(context.Context) (bool, error)) (bool, error) {
	ok, err := try(ctx)
	if ok || err != nil || timeout <= 0 {
		return ok, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(DefaultRetryDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			if ok, err := try(ctx); ok || err != nil {
				return ok, err
			}
		}
	}
}
