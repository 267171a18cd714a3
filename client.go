// Package hec is a batching, retrying, back-pressured client for the
// Splunk HTTP Event Collector wire protocol. Events and metrics pushed
// onto a Client accumulate in an in-memory queue and go out as gzip-able
// newline-delimited JSON batches, either when the queue crosses a size
// threshold or after a bounded idle period, with exponential-family
// retry and graceful, cancellable shutdown.
package hec

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kon-rad/hec-ingest/internal/cancel"
	"github.com/kon-rad/hec-ingest/internal/serialize"
	"github.com/kon-rad/hec-ingest/internal/stats"
	"github.com/kon-rad/hec-ingest/internal/transport"
)

// Client batches and sends events/metrics to one HEC endpoint. The zero
// value is not usable; construct one with New.
type Client struct {
	id     string
	cfg    Config
	logger *slog.Logger

	poolKey    string
	pool       *transport.Pool
	httpClient *http.Client

	mu         sync.Mutex
	queue      []serialize.Message
	queueBytes int64
	idleTimer  *time.Timer

	flushes *cancel.Group
	flushWG sync.WaitGroup

	active       atomic.Bool
	shutdownOnce sync.Once

	counters               stats.Counters
	aggRequestDurationMS   stats.Aggregate
	aggBatchMessages       stats.Aggregate
	aggBatchBytes          stats.Aggregate
	aggBatchBytesOnWire    stats.Aggregate
}

var errUnsupportedRecord = errors.New("unsupported record type")

// New validates cfg, fills in documented defaults, and returns a ready
// Client. The connection pool for cfg.URL is shared process-wide via
// transport.Global, so independently-constructed clients pointed at the
// same endpoint do not multiply socket usage.
func New(cfg Config) (*Client, error) {
	cfg = withDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	pool := transport.Global.Get(cfg.URL, transportOptions(cfg))
	return newClient(cfg, pool, cfg.URL)
}

func newClient(cfg Config, pool *transport.Pool, poolKey string) (*Client, error) {
	c := &Client{
		id:      uuid.NewString(),
		cfg:     cfg,
		logger:  slog.Default(),
		poolKey: poolKey,
		pool:    pool,
		httpClient: &http.Client{
			Transport: pool.Transport,
			Timeout:   cfg.Timeout,
		},
		flushes: cancel.NewGroup(),
	}
	c.active.Store(true)
	return c, nil
}

func transportOptions(cfg Config) transport.Options {
	return transport.Options{
		KeepAlive:             cfg.RequestKeepAlive,
		MaxSockets:            cfg.MaxSockets,
		TLSInsecureSkipVerify: !cfg.ValidateCertificate,
		IdleTimeout:           90 * time.Second,
	}
}

func (c *Client) defaults() serialize.Defaults {
	return serialize.Defaults{Metadata: c.cfg.DefaultMetadata, Fields: c.cfg.DefaultFields}
}

// Push dispatches r to PushEvent, PushMetric, or PushMetrics based on its
// concrete type.
func (c *Client) Push(r record) error {
	switch v := r.(type) {
	case Event:
		return c.PushEvent(v)
	case Metric:
		return c.PushMetric(v)
	case MultiMetric:
		return c.PushMetrics(v)
	default:
		return &SerializationError{Err: errUnsupportedRecord}
	}
}

// PushEvent serializes and enqueues a single event record.
func (c *Client) PushEvent(ev Event) error {
	msg, err := serialize.Event(serialize.EventInput{
		Body: ev.Body, Time: ev.Time, Metadata: ev.Metadata, Fields: ev.Fields,
	}, c.defaults())
	if err != nil {
		return &SerializationError{Err: err}
	}
	return c.pushSerializedMsg(msg)
}

// PushMetric serializes and enqueues a single metric record.
func (c *Client) PushMetric(m Metric) error {
	msg, err := serialize.Metric(serialize.MetricInput{
		Name: m.Name, Value: m.Value, Time: m.Time, Metadata: m.Metadata, Fields: m.Fields,
	}, c.defaults())
	if err != nil {
		return &SerializationError{Err: err}
	}
	return c.pushSerializedMsg(msg)
}

// PushMetrics serializes and enqueues a multi-measurement record, as
// either one combined envelope or several single-metric envelopes
// depending on cfg.MultipleMetricFormatEnabled.
func (c *Client) PushMetrics(mm MultiMetric) error {
	msgs, err := serialize.MultiMetric(serialize.MultiMetricInput{
		Time: mm.Time, Metadata: mm.Metadata, Fields: mm.Fields, Measurements: mm.Measurements,
	}, c.defaults(), c.cfg.MultipleMetricFormatEnabled)
	if err != nil {
		return &SerializationError{Err: err}
	}
	for _, msg := range msgs {
		if err := c.pushSerializedMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

// pushSerializedMsg implements the enqueue protocol: reject if shut down,
// account the message in the queued counters, eagerly flush the current
// batch if this message would cross the byte threshold, append, then let
// scheduleFlush decide whether an immediate or idle-timer flush follows.
func (c *Client) pushSerializedMsg(msg serialize.Message) error {
	if !c.active.Load() {
		return &ShutdownError{}
	}

	c.counters.AddQueuedMessages(1)
	c.counters.AddQueuedBytes(int64(msg.Len()))

	c.mu.Lock()
	willCrossByteThreshold := *c.cfg.MaxQueueSize > 0 &&
		c.queueBytes+int64(msg.Len()) > int64(*c.cfg.MaxQueueSize)
	c.mu.Unlock()
	if willCrossByteThreshold {
		c.flushInternal()
	}

	c.mu.Lock()
	c.queue = append(c.queue, msg)
	c.queueBytes += int64(msg.Len())
	entries := len(c.queue)
	c.mu.Unlock()

	c.scheduleFlush(entries)
	return nil
}

// scheduleFlush triggers an immediate flush once the entry-count
// threshold is crossed, otherwise arms an idle timer (if one isn't
// already armed) to flush after cfg.FlushTime of inactivity.
func (c *Client) scheduleFlush(entries int) {
	if c.cfg.MaxQueueEntries > 0 && entries >= c.cfg.MaxQueueEntries {
		c.flushInternal()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimer != nil {
		return
	}
	delay := *c.cfg.FlushTime
	if delay <= 0 {
		delay = time.Millisecond
	}
	c.idleTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.idleTimer = nil
		c.mu.Unlock()
		c.flushInternal()
	})
}

// flushInternal atomically swaps out the current queue, registers the
// send under the client's active-flush group, and dispatches it on its
// own goroutine. The returned channel fires exactly once, with nil on
// success, cancel.ErrCancelled if shutdown cancelled it mid-flight, or
// the terminal send error otherwise. An empty queue returns an
// already-fired nil channel.
func (c *Client) flushInternal() <-chan error {
	c.mu.Lock()
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if len(c.queue) == 0 {
		c.mu.Unlock()
		done := make(chan error, 1)
		done <- nil
		return done
	}
	batch := c.queue
	batchBytes := c.queueBytes
	c.queue = nil
	c.queueBytes = 0
	c.mu.Unlock()

	done := make(chan error, 1)
	c.flushWG.Add(1)
	go func() {
		defer c.flushWG.Done()
		_, err := c.flushes.Run(context.Background(), func(ctx context.Context, tok *cancel.Token) (any, error) {
			return nil, c.sendToHec(ctx, tok, batch, batchBytes)
		})
		done <- err
	}()
	return done
}
