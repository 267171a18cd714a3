package hec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kon-rad/hec-ingest/internal/cancel"
	"github.com/kon-rad/hec-ingest/internal/compress"
	"github.com/kon-rad/hec-ingest/internal/retry"
	"github.com/kon-rad/hec-ingest/internal/serialize"
)

// sendToHec concatenates batch into one wire body, optionally gzips it,
// and POSTs it with retry per cfg.MaxRetries/cfg.RetryWaitTime. tok, when
// triggered by a concurrent Shutdown, aborts the retry loop immediately
// with cancel.ErrCancelled.
func (c *Client) sendToHec(ctx context.Context, tok *cancel.Token, batch []serialize.Message, rawBytes int64) error {
	body := make([]byte, 0, rawBytes)
	for _, m := range batch {
		body = append(body, m.Bytes()...)
	}
	c.aggBatchMessages.Observe(float64(len(batch)))
	c.aggBatchBytes.Observe(float64(len(body)))

	wireBody := body
	gzipped := false
	if c.cfg.Gzip {
		compressed, err := compress.Gzip(body)
		if err != nil {
			return &CompressionError{Err: err}
		}
		wireBody = compressed
		gzipped = true
	}
	c.aggBatchBytesOnWire.Observe(float64(len(wireBody)))

	headers := make(http.Header)
	headers.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		headers.Set("Authorization", "Splunk "+c.cfg.Token)
	}
	headers.Set("Content-Type", "application/json")
	if gzipped {
		headers.Set("Content-Encoding", "gzip")
	}

	_, err := retry.Do(ctx, "hec-flush", func(reqCtx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, c.sendOnce(reqCtx, headers, wireBody)
	},
		retry.WithMaxAttempts(c.cfg.MaxRetries+1),
		retry.WithWait(c.cfg.RetryWaitTime),
		retry.WithToken(tok),
		retry.WithOnError(func(attempt int, sendErr error) {
			c.counters.AddRetry(1)
			c.logSendFailure(attempt, sendErr)
		}),
	)
	if err != nil {
		if errors.Is(err, cancel.ErrCancelled) {
			return cancel.ErrCancelled
		}
		c.logger.Error("hec: flush exhausted retries", "error", err, "messages", len(batch))
		return err
	}

	c.counters.AddSentMessages(int64(len(batch)))
	c.counters.AddSentBytes(int64(len(body)))
	c.counters.AddTransferredBytes(int64(len(wireBody)))
	return nil
}

// sendOnce performs a single POST attempt. Each attempt gets a fresh
// bytes.Reader over its own copy of the body, since a transport that
// consumed part of a failed request's reader must not reuse it on retry.
func (c *Client) sendOnce(ctx context.Context, headers http.Header, wireBody []byte) error {
	reqBody := make([]byte, len(wireBody))
	copy(reqBody, wireBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(reqBody))
	if err != nil {
		c.counters.AddError(1)
		return &TransportError{Err: err}
	}
	req.Header = headers.Clone()
	req.ContentLength = int64(len(reqBody))

	release := c.pool.Acquire()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	release()
	c.aggRequestDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.counters.AddError(1)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.counters.AddError(1)
		return &TransportError{Err: fmt.Errorf("collector responded with status %d", resp.StatusCode)}
	}
	return nil
}

// logSendFailure logs the first failed attempt at warn, subsequent ones
// at debug, matching the collector client's escalation policy: repeated
// transient failures shouldn't flood the log at warn level.
func (c *Client) logSendFailure(attempt int, err error) {
	if attempt <= 1 {
		c.logger.Warn("hec: send attempt failed, retrying", "attempt", attempt, "error", err)
		return
	}
	c.logger.Debug("hec: send attempt failed, retrying", "attempt", attempt, "error", err)
}
