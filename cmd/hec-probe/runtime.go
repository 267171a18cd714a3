package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kon-rad/hec-ingest"
	"github.com/kon-rad/hec-ingest/internal/retry"
	"github.com/kon-rad/hec-ingest/internal/selfmetrics"
)

// Runtime wires an *hec.Client to a small HTTP front door and drives its
// background stats logging and graceful shutdown.
type Runtime struct {
	cfg       *Config
	logger    *slog.Logger
	version   string
	startedAt time.Time

	client     *hec.Client
	httpServer *http.Server
	statsDone  chan struct{}
}

func NewRuntime(cfg *Config, logger *slog.Logger, version string) *Runtime {
	return &Runtime{cfg: cfg, logger: logger, version: version, startedAt: time.Now()}
}

func (r *Runtime) Run(ctx context.Context) error {
	maxQueueSize := r.cfg.MaxQueueSize
	flushInterval := r.cfg.FlushInterval
	client, err := hec.New(hec.Config{
		URL:                         r.cfg.CollectorURL,
		Token:                       r.cfg.CollectorToken,
		UserAgent:                   "hec-probe/" + r.version,
		Timeout:                     r.cfg.RequestTimeout,
		Gzip:                        r.cfg.Gzip,
		MultipleMetricFormatEnabled: r.cfg.MultipleMetricFormat,
		MaxQueueSize:                &maxQueueSize,
		MaxQueueEntries:             -1,
		FlushTime:                   &flushInterval,
		MaxRetries:                  r.cfg.MaxRetries,
		RetryWaitTime:               retry.Exponential(500*time.Millisecond, 2, 30*time.Second),
	})
	if err != nil {
		return fmt.Errorf("build hec client: %w", err)
	}
	r.client = client

	if r.cfg.WaitForCollectorTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, r.cfg.WaitForCollectorTimeout)
		err := r.client.WaitUntilAvailable(waitCtx, r.cfg.WaitForCollectorTimeout)
		cancel()
		if err != nil {
			r.logger.Warn("collector did not become available before startup timeout", "error", err)
		}
	}

	statsHandler := NewStatsHandler(r.client, r.startedAt, r.version)
	ingestHandlers := NewIngestHandlers(r.client)
	r.httpServer = newServer(":"+r.cfg.Port, statsHandler.ServeHTTP, ingestHandlers)

	r.statsDone = make(chan struct{})
	go r.logStatsPeriodically(ctx)
	go r.pushSelfMetricsPeriodically(ctx)

	serverErr := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", ":"+r.cfg.Port, "collector_url", r.cfg.CollectorURL)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
		return r.shutdown(context.Background())
	}
}

func (r *Runtime) logStatsPeriodically(ctx context.Context) {
	defer close(r.statsDone)
	ticker := time.NewTicker(r.cfg.StatsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.client.FlushStats()
			r.logger.Info("hec stats",
				"sent_messages", snap.Counters.SentMessages,
				"queued_messages", snap.Counters.QueuedMessages,
				"error_count", snap.Counters.ErrorCount,
				"retry_count", snap.Counters.RetryCount,
				"active_flushes", snap.ActiveFlushes,
				"pool_in_flight", snap.Pool.InFlight,
			)
		}
	}
}

// pushSelfMetricsPeriodically samples the probe's own cgroup resource
// usage and pushes it through the very client it's monitoring, so an
// operator watching the collector sees the probe's own health alongside
// whatever it's forwarding.
func (r *Runtime) pushSelfMetricsPeriodically(ctx context.Context) {
	sampler := selfmetrics.NewSampler(".")
	ticker := time.NewTicker(r.cfg.StatsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			measurements, ok := sampler.Sample()
			if !ok {
				continue
			}
			err := r.client.PushMetrics(hec.MultiMetric{
				Time:         time.Now(),
				Metadata:     hec.Metadata{Source: "hec-probe", SourceType: "hec-probe:self"},
				Measurements: measurements,
			})
			if err != nil {
				r.logger.Warn("failed to push self metrics", "error", err)
			}
		}
	}
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var joined error

	if r.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.httpServer.Shutdown(httpCtx); err != nil {
			joined = errors.Join(joined, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if r.client != nil {
		drain := r.cfg.ShutdownDrainTimeout
		if err := r.client.Shutdown(ctx, &drain); err != nil {
			joined = errors.Join(joined, fmt.Errorf("hec client shutdown: %w", err))
		}
	}

	r.logger.Info("shutdown complete", "uptime", time.Since(r.startedAt).String())
	return joined
}
