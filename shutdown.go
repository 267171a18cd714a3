package hec

import (
	"context"
	"time"

	"github.com/kon-rad/hec-ingest/internal/cancel"
)

// Shutdown flips the client into a rejecting-new-pushes state. If no
// flush is in flight it returns nil at once without flushing the queue;
// a queued batch still goes out when its idle timer fires. Otherwise, if
// maxTime is non-nil, it races one final Flush against a sleep of
// *maxTime: whichever settles first wins, and anything still in flight
// when the sleep wins is cancelled. A nil maxTime returns immediately
// without waiting for or cancelling outstanding flushes; a zero *maxTime
// races with an already-elapsed sleep, which in practice cancels any
// flush that hasn't already completed.
func (c *Client) Shutdown(ctx context.Context, maxTime *time.Duration) error {
	c.shutdownOnce.Do(func() { c.active.Store(false) })

	if c.flushes.Len() == 0 {
		return nil
	}
	if maxTime == nil {
		return nil
	}

	doneCh := c.Flush(ctx)
	select {
	case err := <-doneCh:
		return err
	case <-time.After(*maxTime):
		c.flushes.TriggerAll()
		return cancel.ErrCancelled
	}
}
