package hec

import (
	"github.com/kon-rad/hec-ingest/internal/hardening"
	"github.com/kon-rad/hec-ingest/internal/stats"
	"github.com/kon-rad/hec-ingest/internal/transport"
)

// Stats is a point-in-time snapshot of the client's counters, running
// aggregates (reset by this call), connection pool usage, current queue
// depth, and process RSS.
type Stats struct {
	Counters          stats.Snapshot
	ActiveFlushes     int
	Pool              transport.Status
	QueueDepth        int
	QueueBytes        int64
	RequestDurationMS map[string]float64
	BatchMessages     map[string]float64
	BatchBytes        map[string]float64
	BatchBytesOnWire  map[string]float64
	ProcessRSSBytes   int64
}

// FlushStats returns a snapshot of the client's counters and aggregates.
// Calling it resets the running aggregates (min/max/avg since the last
// call); the plain counters are cumulative and never reset.
func (c *Client) FlushStats() Stats {
	rss, err := hardening.CurrentRSSBytes()
	if err != nil {
		rss = 0
	}
	c.mu.Lock()
	queueDepth := len(c.queue)
	queueBytes := c.queueBytes
	c.mu.Unlock()
	return Stats{
		Counters:          c.counters.Snapshot(),
		ActiveFlushes:     c.flushes.Len(),
		Pool:              c.pool.Status(c.cfg.MaxSockets),
		QueueDepth:        queueDepth,
		QueueBytes:        queueBytes,
		RequestDurationMS: c.aggRequestDurationMS.Flush("requestDuration"),
		BatchMessages:     c.aggBatchMessages.Flush("batchSize"),
		BatchBytes:        c.aggBatchBytes.Flush("batchSizeBytes"),
		BatchBytesOnWire:  c.aggBatchBytesOnWire.Flush("batchSizeCompressed"),
		ProcessRSSBytes:   rss,
	}
}
