package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kon-rad/hec-ingest/internal/cancel"
)

func TestDoSucceedsOnFirstTry(t *testing.T) {
	t.Parallel()

	var calls int64
	val, err := Do(context.Background(), "noop", func(ctx context.Context, attempt int) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 7, nil
	})
	if err != nil || val != 7 {
		t.Fatalf("Do() = (%d, %v), want (7, nil)", val, err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoCallsOpAtMostMaxAttemptsPlusOneOnPermanentFailure(t *testing.T) {
	t.Parallel()

	var calls int64
	wantErr := errors.New("permanent")
	_, err := Do(context.Background(), "failing", func(ctx context.Context, attempt int) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 0, wantErr
	}, WithMaxAttempts(3), WithWait(Constant(time.Millisecond)))

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *RetriesExhaustedError", err)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("err should unwrap to the original cause")
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Fatalf("calls = %d, want 3 (maxAttempts)", calls)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int64
	val, err := Do(context.Background(), "flaky", func(ctx context.Context, attempt int) (string, error) {
		n := atomic.AddInt64(&calls, 1)
		if n < 3 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	}, WithMaxAttempts(5), WithWait(Constant(time.Millisecond)))
	if err != nil || val != "ok" {
		t.Fatalf("Do() = (%q, %v), want (ok, nil)", val, err)
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoHonoursCancellationToken(t *testing.T) {
	t.Parallel()

	tok := cancel.NewToken()
	go func() {
		time.Sleep(20 * time.Millisecond)
		tok.Trigger()
	}()

	_, err := Do(context.Background(), "sleepy", func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("always fails")
	}, WithWait(Constant(5*time.Second)), WithToken(tok))

	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("err = %v, want cancel.ErrCancelled", err)
	}
}

func TestDoOnErrorHookPanicIsSwallowed(t *testing.T) {
	t.Parallel()

	var calls int64
	_, err := Do(context.Background(), "hook-panics", func(ctx context.Context, attempt int) (int, error) {
		n := atomic.AddInt64(&calls, 1)
		if n < 2 {
			return 0, errors.New("fail once")
		}
		return 1, nil
	}, WithMaxAttempts(5), WithWait(Constant(time.Millisecond)), WithOnError(func(attempt int, err error) {
		panic("boom")
	}))
	if err != nil {
		t.Fatalf("Do() err = %v, want nil (hook panic must not propagate)", err)
	}
}

func TestDoRespectsOverallTimeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := Do(context.Background(), "slow", func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("always fails")
	}, WithTimeout(30*time.Millisecond), WithWait(Constant(10*time.Millisecond)))

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *RetriesExhaustedError", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Do() took %v, should have stopped near the timeout", elapsed)
	}
}
