package provision

import (
	"context"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned when a readiness deadline elapses without
// the predicate becoming true. It is fatal and non-retryable: the user
// has to fix upstream configuration and restart the saga.
var ErrWaitTimeout = fmt.Errorf("timed out waiting for readiness")

// WaitUntilReady polls predicate at the given interval until it returns
// true, the timeout elapses, or ctx is done. onTick, when set, fires
// after every unsuccessful poll so callers can keep UI state fresh
// during long waits. A transient predicate error counts as "not ready
// yet" and the poll continues; any other error aborts the wait.
func WaitUntilReady(ctx context.Context, predicate func(context.Context) (bool, error), timeout, interval time.Duration, onTick func(elapsed time.Duration)) error {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	deadline := time.Now().Add(timeout)
	start := time.Now()
	for {
		ready, err := predicate(ctx)
		if err != nil && !IsTransient(err) {
			return err
		}
		if err == nil && ready {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, timeout, err)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if onTick != nil {
			onTick(time.Since(start).Round(time.Second))
		}
	}
}
