// Package retry re-invokes a fallible operation with configurable
// wait-between strategy, overall timeout, attempt cap, and per-error hook,
// honouring cancellation at every wait point.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kon-rad/hec-ingest/internal/cancel"
)

// RetriesExhaustedError wraps the last error after the attempt cap or
// overall timeout has been reached.
type RetriesExhaustedError struct {
	Task     string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempt(s): %v", e.Task, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// Option configures a Do call.
type Option func(*options)

type options struct {
	maxAttempts int
	timeout     time.Duration
	wait        WaitLike
	onError     func(attempt int, err error)
	token       *cancel.Token
}

// WithMaxAttempts caps the number of attempts. 0 (the default) means
// unbounded.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithTimeout bounds total elapsed wall-clock time across all attempts.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithWait sets the wait-between-attempts strategy. Default is zero wait.
func WithWait(w WaitLike) Option {
	return func(o *options) { o.wait = w }
}

// WithOnError registers a hook invoked synchronously after each failed
// attempt, before the wait. A panic inside the hook is recovered and
// swallowed: it is non-fatal to the retry loop.
func WithOnError(fn func(attempt int, err error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithToken wires a cancellation token: if it fires at any point,
// including mid-sleep or mid-operation, Do abandons immediately with
// cancel.ErrCancelled.
func WithToken(tok *cancel.Token) Option {
	return func(o *options) { o.token = tok }
}

// Do invokes op, retrying on failure per the configured options, until
// success, exhaustion, or cancellation.
func Do[T any](ctx context.Context, name string, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	var zero T
	cfg := options{wait: Constant(0)}
	for _, opt := range opts {
		opt(&cfg)
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if cfg.timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(runCtx, cfg.timeout)
		defer cancelTimeout()
	}
	if cfg.token != nil {
		var cancelTok context.CancelFunc
		runCtx, cancelTok = cancel.WithContext(runCtx, cfg.token)
		defer cancelTok()
	}

	attempt := 0
	for {
		attempt++

		if cfg.token != nil && cfg.token.Triggered() {
			return zero, cancel.ErrCancelled
		}

		val, err := op(runCtx, attempt)
		if err == nil {
			return val, nil
		}

		if cfg.token != nil && cfg.token.Triggered() {
			return zero, cancel.ErrCancelled
		}
		if errors.Is(err, context.Canceled) && cfg.token != nil && cfg.token.Triggered() {
			return zero, cancel.ErrCancelled
		}

		exhausted := (cfg.maxAttempts > 0 && attempt >= cfg.maxAttempts) ||
			(cfg.timeout > 0 && runCtx.Err() != nil)
		if exhausted {
			return zero, &RetriesExhaustedError{Task: name, Attempts: attempt, Err: err}
		}

		invokeOnError(cfg.onError, attempt, err)

		wait := Resolve(cfg.wait, attempt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-runCtx.Done():
				timer.Stop()
				if cfg.token != nil && cfg.token.Triggered() {
					return zero, cancel.ErrCancelled
				}
				return zero, &RetriesExhaustedError{Task: name, Attempts: attempt, Err: runCtx.Err()}
			}
		}
	}
}

// invokeOnError calls fn, recovering and discarding any panic it raises.
func invokeOnError(fn func(attempt int, err error), attempt int, err error) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(attempt, err)
}
