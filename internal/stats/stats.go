// Package stats implements the collector client's counters and running
// numeric aggregates: plain integers for event counts, and a resettable
// count/sum/min/max/avg summary for latency- and size-shaped samples.
package stats

import "sync/atomic"

// Counters holds the client's plain integer counters, safe for
// concurrent use.
type Counters struct {
	errorCount       int64
	retryCount       int64
	queuedMessages   int64
	sentMessages     int64
	queuedBytes      int64
	sentBytes        int64
	transferredBytes int64
}

func (c *Counters) AddError(n int64)            { atomic.AddInt64(&c.errorCount, n) }
func (c *Counters) AddRetry(n int64)            { atomic.AddInt64(&c.retryCount, n) }
func (c *Counters) AddQueuedMessages(n int64)   { atomic.AddInt64(&c.queuedMessages, n) }
func (c *Counters) AddSentMessages(n int64)     { atomic.AddInt64(&c.sentMessages, n) }
func (c *Counters) AddQueuedBytes(n int64)      { atomic.AddInt64(&c.queuedBytes, n) }
func (c *Counters) AddSentBytes(n int64)        { atomic.AddInt64(&c.sentBytes, n) }
func (c *Counters) AddTransferredBytes(n int64) { atomic.AddInt64(&c.transferredBytes, n) }

// Snapshot is a point-in-time, non-resetting read of the counters.
type Snapshot struct {
	ErrorCount       int64
	RetryCount       int64
	QueuedMessages   int64
	SentMessages     int64
	QueuedBytes      int64
	SentBytes        int64
	TransferredBytes int64
}

// Snapshot reads every counter without resetting any of them.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		ErrorCount:       atomic.LoadInt64(&c.errorCount),
		RetryCount:       atomic.LoadInt64(&c.retryCount),
		QueuedMessages:   atomic.LoadInt64(&c.queuedMessages),
		SentMessages:     atomic.LoadInt64(&c.sentMessages),
		QueuedBytes:      atomic.LoadInt64(&c.queuedBytes),
		SentBytes:        atomic.LoadInt64(&c.sentBytes),
		TransferredBytes: atomic.LoadInt64(&c.transferredBytes),
	}
}
