package stats

import "testing"

func TestCountersSnapshotDoesNotReset(t *testing.T) {
	t.Parallel()

	var c Counters
	c.AddSentMessages(5)
	c.AddSentBytes(100)

	first := c.Snapshot()
	second := c.Snapshot()
	if first.SentMessages != 5 || second.SentMessages != 5 {
		t.Fatalf("snapshot must not reset: first=%d second=%d", first.SentMessages, second.SentMessages)
	}
	if first.SentBytes != 100 {
		t.Fatalf("SentBytes = %d, want 100", first.SentBytes)
	}
}

func TestAggregateFlushResetsAndComputesAvg(t *testing.T) {
	t.Parallel()

	var a Aggregate
	a.Observe(10)
	a.Observe(20)
	a.Observe(30)

	got := a.Flush("batch")
	want := map[string]float64{
		"batch_count": 3,
		"batch_sum":   60,
		"batch_min":   10,
		"batch_max":   30,
		"batch_avg":   20,
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("got[%q] = %v, want %v (full: %v)", k, got[k], v, got)
		}
	}

	again := a.Flush("batch")
	if again["batch_count"] != 0 {
		t.Fatalf("expected reset after Flush, got count=%v", again["batch_count"])
	}
}

func TestAggregateFlushWithNoSamples(t *testing.T) {
	t.Parallel()

	var a Aggregate
	got := a.Flush("empty")
	for _, k := range []string{"empty_count", "empty_sum", "empty_min", "empty_max", "empty_avg"} {
		if got[k] != 0 {
			t.Fatalf("got[%q] = %v, want 0", k, got[k])
		}
	}
}
