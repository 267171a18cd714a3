package hec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kon-rad/hec-ingest/internal/retry"
)

// CheckAvailable performs one GET against the collector's health endpoint
// (the configured URL's host with the path replaced by
// /services/collector/health) and returns nil only on a 2xx response.
func (c *Client) CheckAvailable(ctx context.Context) error {
	healthURL, err := healthEndpoint(c.cfg.URL)
	if err != nil {
		return &ConfigError{Field: "URL", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Err: fmt.Errorf("health endpoint responded with status %d", resp.StatusCode)}
	}
	return nil
}

func healthEndpoint(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Path = "/services/collector/health"
	u.RawQuery = ""
	return u.String(), nil
}

// WaitUntilAvailable polls CheckAvailable with a linear backoff (500ms
// initial, +250ms per attempt, capped at 2.5s) until it succeeds or
// maxTime elapses.
func (c *Client) WaitUntilAvailable(ctx context.Context, maxTime time.Duration) error {
	loggedFailure := false
	_, err := retry.Do(ctx, "wait-until-available", func(reqCtx context.Context, attempt int) (struct{}, error) {
		checkErr := c.CheckAvailable(reqCtx)
		if checkErr != nil && !loggedFailure {
			c.logger.Warn("hec: collector not yet available", "error", checkErr)
			loggedFailure = true
		}
		return struct{}{}, checkErr
	},
		retry.WithTimeout(maxTime),
		retry.WithWait(retry.Linear(500*time.Millisecond, 250*time.Millisecond, 2500*time.Millisecond)),
	)
	if err == nil && loggedFailure {
		c.logger.Info("hec: collector became available")
	}
	return err
}
