package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kon-rad/hec-ingest"
)

// StatsResponse mirrors hec.Stats in a stable, JSON-friendly shape for the
// admin endpoint.
type StatsResponse struct {
	Status            string             `json:"status"`
	UptimeSeconds     int64              `json:"uptime_seconds"`
	Version           string             `json:"version"`
	ErrorCount        int64              `json:"error_count"`
	RetryCount        int64              `json:"retry_count"`
	QueuedMessages    int64              `json:"queued_messages"`
	SentMessages      int64              `json:"sent_messages"`
	QueuedBytes       int64              `json:"queued_bytes"`
	SentBytes         int64              `json:"sent_bytes"`
	TransferredBytes  int64              `json:"transferred_bytes"`
	ActiveFlushes     int                `json:"active_flushes"`
	QueueDepth        int                `json:"queue_depth"`
	QueueBytes        int64              `json:"queue_bytes"`
	PoolInFlight      int64              `json:"pool_in_flight"`
	PoolMaxSockets    int                `json:"pool_max_sockets"`
	RequestDurationMS map[string]float64 `json:"request_duration_ms"`
	BatchMessages     map[string]float64 `json:"batch_messages"`
	BatchBytes        map[string]float64 `json:"batch_bytes"`
	BatchBytesOnWire  map[string]float64 `json:"batch_bytes_on_wire"`
	ProcessRSSBytes   int64              `json:"process_rss_bytes"`
	GeneratedAt       string             `json:"generated_at"`
}

// StatsProvider is the subset of *hec.Client the admin endpoint needs.
type StatsProvider interface {
	FlushStats() hec.Stats
}

type StatsHandler struct {
	client    StatsProvider
	startTime time.Time
	version   string
}

func NewStatsHandler(client StatsProvider, start time.Time, version string) *StatsHandler {
	return &StatsHandler{client: client, startTime: start, version: version}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snap := h.client.FlushStats()

	resp := StatsResponse{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(h.startTime).Seconds()),
		Version:           h.version,
		ErrorCount:        snap.Counters.ErrorCount,
		RetryCount:        snap.Counters.RetryCount,
		QueuedMessages:    snap.Counters.QueuedMessages,
		SentMessages:      snap.Counters.SentMessages,
		QueuedBytes:       snap.Counters.QueuedBytes,
		SentBytes:         snap.Counters.SentBytes,
		TransferredBytes:  snap.Counters.TransferredBytes,
		ActiveFlushes:     snap.ActiveFlushes,
		QueueDepth:        snap.QueueDepth,
		QueueBytes:        snap.QueueBytes,
		PoolInFlight:      snap.Pool.InFlight,
		PoolMaxSockets:    snap.Pool.MaxSockets,
		RequestDurationMS: snap.RequestDurationMS,
		BatchMessages:     snap.BatchMessages,
		BatchBytes:        snap.BatchBytes,
		BatchBytesOnWire:  snap.BatchBytesOnWire,
		ProcessRSSBytes:   snap.ProcessRSSBytes,
		GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
