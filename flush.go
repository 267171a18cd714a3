package hec

import "context"

// Flush forces the current queue out immediately and returns a channel
// that fires once every currently in-flight flush and the just-triggered
// one have completed. It never blocks the caller.
func (c *Client) Flush(ctx context.Context) <-chan error {
	newFlushDone := c.flushInternal()
	out := make(chan error, 1)
	go func() {
		firstErr := <-newFlushDone

		allDone := make(chan struct{})
		go func() {
			c.flushWG.Wait()
			close(allDone)
		}()

		select {
		case <-allDone:
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
		}
		out <- firstErr
	}()
	return out
}
