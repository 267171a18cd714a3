// Package cancel implements the one-shot cancellation primitives shared by
// the retry engine and the collector client: a token that can be triggered
// at most once, and a group that owns a set of currently-live tokens and
// can trigger all of them together.
package cancel

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the distinguished sentinel that lets callers tell
// cancellation apart from an ordinary operation failure. It is returned
// (possibly wrapped) by every helper in this package and by the retry
// engine, and should be tested with errors.Is, never by string match.
var ErrCancelled = errors.New("cancelled")

// Token is a one-shot cancellation signal. The zero value is not usable;
// construct one with NewToken.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken returns a token that starts un-triggered.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Trigger fires the token. Safe to call more than once or concurrently;
// only the first call has an effect.
func (t *Token) Trigger() {
	t.once.Do(func() { close(t.done) })
}

// Triggered reports whether Trigger has been called.
func (t *Token) Triggered() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the token is triggered.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Err returns nil before the token fires and ErrCancelled after.
func (t *Token) Err() error {
	if t.Triggered() {
		return ErrCancelled
	}
	return nil
}

// WithContext returns a context that is cancelled either when ctx is
// cancelled or when tok fires, along with its cancel func. Callers should
// always call the returned cancel func to release resources.
func WithContext(ctx context.Context, tok *Token) (context.Context, context.CancelFunc) {
	child, cancel := context.WithCancel(ctx)
	if tok == nil {
		return child, cancel
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-tok.Done():
			cancel()
		case <-stop:
		}
	}()
	return child, func() {
		close(stop)
		cancel()
	}
}

// Group owns a set of currently-live tokens and can trigger them all at
// once. Once collectively triggered, every subsequent Run call fails
// immediately with ErrCancelled without invoking its closure.
type Group struct {
	mu        sync.Mutex
	tokens    map[*Token]struct{}
	triggered bool
}

// NewGroup returns an empty, not-yet-triggered group.
func NewGroup() *Group {
	return &Group{tokens: make(map[*Token]struct{})}
}

// Run creates a fresh token, registers it with the group for the duration
// of fn, and guarantees the token is removed from the group on every exit
// path (success, error, or panic). If the group has already been
// collectively triggered, fn is never invoked.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, tok *Token) (any, error)) (any, error) {
	g.mu.Lock()
	if g.triggered {
		g.mu.Unlock()
		return nil, ErrCancelled
	}
	tok := NewToken()
	g.tokens[tok] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.tokens, tok)
		g.mu.Unlock()
	}()

	runCtx, cancel := WithContext(ctx, tok)
	defer cancel()
	return fn(runCtx, tok)
}

// TriggerAll fires every currently live token and empties the set. It is
// idempotent: once called, the group stays triggered forever.
func (g *Group) TriggerAll() {
	g.mu.Lock()
	g.triggered = true
	tokens := g.tokens
	g.tokens = make(map[*Token]struct{})
	g.mu.Unlock()

	for tok := range tokens {
		tok.Trigger()
	}
}

// Len reports the number of currently live tokens. Used by the collector
// client to answer "is the active-flush set empty".
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens)
}

// Race runs fn against ctx and races it against tok firing; if tok fires
// first, Race returns the zero value of T and ErrCancelled.
func Race[T any](ctx context.Context, tok *Token, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if tok == nil {
		return fn(ctx)
	}
	runCtx, cancel := WithContext(ctx, tok)
	defer cancel()

	type result struct {
		val T
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		v, err := fn(runCtx)
		resCh <- result{v, err}
	}()

	select {
	case <-tok.Done():
		return zero, ErrCancelled
	case r := <-resCh:
		return r.val, r.err
	}
}

// TriggerOthersOnFirstSettled runs each thunk concurrently. As soon as any
// one settles (returns, successfully or not), every token in tokens is
// triggered, giving the remaining thunks a chance to stop cooperatively.
// It returns the first result to settle.
func TriggerOthersOnFirstSettled(tokens []*Token, thunks []func() (any, error)) (any, error) {
	type result struct {
		val any
		err error
	}
	resCh := make(chan result, len(thunks))
	for _, th := range thunks {
		th := th
		go func() {
			v, err := th()
			resCh <- result{v, err}
		}()
	}

	first := <-resCh
	for _, tok := range tokens {
		if tok != nil {
			tok.Trigger()
		}
	}
	return first.val, first.err
}
