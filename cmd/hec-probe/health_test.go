package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kon-rad/hec-ingest"
)

type staticStats struct{}

func (staticStats) FlushStats() hec.Stats {
	return hec.Stats{ActiveFlushes: 2}
}

func TestStatsHandlerAlwaysReturnsContract(t *testing.T) {
	t.Parallel()

	handler := NewStatsHandler(staticStats{}, time.Now().Add(-5*time.Second), "test-version")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode error = %v", err)
	}

	required := []string{
		"status", "uptime_seconds", "version",
		"error_count", "retry_count", "queued_messages", "sent_messages",
		"queued_bytes", "sent_bytes", "transferred_bytes",
		"active_flushes", "queue_depth", "queue_bytes", "pool_in_flight", "pool_max_sockets",
		"generated_at",
	}
	for _, key := range required {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing stats field %q", key)
		}
	}
	if body["active_flushes"].(float64) != 2 {
		t.Fatalf("active_flushes = %v, want 2", body["active_flushes"])
	}
}
