package provider

import (
	"context"
	"fmt"
	"time"
)

// WaitUntil polls cond at the given interval until it reports true, the
// timeout elapses, or ctx is cancelled. Readiness gates poll the dependent
// resource's own read API; cond returns (false, nil) while propagation is
// still in flight and an error only on hard failures.
func WaitUntil(ctx context.Context, what string, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", what, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, what)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s cancelled: %w", what, ctx.Err())
		case <-time.After(interval):
		}
	}
}
