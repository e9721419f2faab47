package provision

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitUntilReadyImmediate(t *testing.T) {
	ticks := 0
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		return true, nil
	}, time.Second, time.Millisecond, func(time.Duration) { ticks++ })
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ticks != 0 {
		t.Fatalf("onTick fired %d times for an immediately ready target", ticks)
	}
}

func TestWaitUntilReadyPollsUntilTrue(t *testing.T) {
	calls := 0
	ticks := 0
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	}, time.Second, time.Millisecond, func(time.Duration) { ticks++ })
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls != 3 {
		t.Fatalf("predicate called %d times, want 3", calls)
	}
	if ticks != 2 {
		t.Fatalf("onTick fired %d times, want 2", ticks)
	}
}

func TestWaitUntilReadyRidesOutTransientErrors(t *testing.T) {
	calls := 0
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls <= 2 {
			return false, errConnRefused
		}
		return true, nil
	}, time.Second, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls != 3 {
		t.Fatalf("predicate called %d times, want 3", calls)
	}
}

func TestWaitUntilReadyTransientErrorUntilDeadline(t *testing.T) {
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		return false, errConnRefused
	}, 5*time.Millisecond, time.Millisecond, nil)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if !IsTransient(err) {
		t.Fatalf("timeout amid network faults lost the underlying cause: %v", err)
	}
}

func TestWaitUntilReadyPredicateError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		return false, boom
	}, time.Second, time.Millisecond, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want predicate error", err)
	}
}

func TestWaitUntilReadyTimeout(t *testing.T) {
	err := WaitUntilReady(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	}, 5*time.Millisecond, time.Millisecond, nil)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}

func TestWaitUntilReadyContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	}, time.Second, 50*time.Millisecond, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
