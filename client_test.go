package hec

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kon-rad/hec-ingest/internal/retry"
)

// newTestServer starts an httptest server backed by a real listener,
// skipping the test if the sandbox refuses to bind a loopback socket
// rather than failing outright.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind loopback listener in this sandbox: %v", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func durationPtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                          { return &i }

func testConfig(url string) Config {
	return Config{
		URL:             url + "/services/collector",
		Token:           "test-token",
		MaxQueueEntries: 1, // flush after every push unless a test overrides it
		FlushTime:       durationPtr(time.Hour),
		MaxRetries:      2,
		RetryWaitTime:   retry.Constant(time.Millisecond),
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty URL")
	}
	if _, err := New(Config{URL: "not-a-url-scheme", Token: "x"}); err == nil {
		t.Fatalf("expected error for non-http(s) URL")
	}
	if _, err := New(Config{URL: "https://example.com/hec"}); err != nil {
		t.Fatalf("expected a missing Token to be valid (auth header is simply omitted), got: %v", err)
	}
}

func TestPushEventFlushSendsExpectedEnvelope(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var received string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.DefaultMetadata = Metadata{Source: "unit-test"}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.PushEvent(Event{Body: map[string]any{"msg": "hello"}}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	waitForFlush(t, client)

	mu.Lock()
	got := received
	mu.Unlock()
	if !strings.Contains(got, `"source":"unit-test"`) {
		t.Fatalf("expected default source in payload, got %q", got)
	}
	if !strings.Contains(got, `"event":{"msg":"hello"}`) {
		t.Fatalf("expected event body in payload, got %q", got)
	}
}

func TestEntryCountThresholdTriggersImmediateFlush(t *testing.T) {
	t.Parallel()

	requests := make(chan int, 8)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- strings.Count(string(body), "\n")
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.MaxQueueEntries = 3
	cfg.FlushTime = durationPtr(time.Hour)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := client.PushEvent(Event{Body: i}); err != nil {
			t.Fatalf("PushEvent: %v", err)
		}
	}

	select {
	case n := <-requests:
		if n != 3 {
			t.Fatalf("expected batch of 3 lines, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for entry-count-triggered flush")
	}
}

func TestByteThresholdTriggersEagerFlushBeforeAppend(t *testing.T) {
	t.Parallel()

	var batches [][]byte
	var mu sync.Mutex
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		batches = append(batches, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.MaxQueueEntries = -1
	cfg.MaxQueueSize = intPtr(40)
	cfg.FlushTime = durationPtr(time.Hour)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	big := strings.Repeat("x", 60)
	if err := client.PushEvent(Event{Body: big}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	select {
	case err := <-client.Flush(context.Background()):
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Flush to complete")
	}

	mu.Lock()
	n := len(batches)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected the oversized message to be sent alone, got %d batches", n)
	}
}

func TestRetryScenarioR1(t *testing.T) {
	t.Parallel()

	var attempts int
	var mu sync.Mutex
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 3
	cfg.RetryWaitTime = retry.Constant(time.Millisecond)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.PushEvent(Event{Body: "x"}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		snap := client.FlushStats()
		if snap.Counters.SentMessages == 1 {
			if snap.Counters.RetryCount != 2 {
				t.Fatalf("RetryCount = %d, want 2", snap.Counters.RetryCount)
			}
			if snap.Counters.ErrorCount != 2 {
				t.Fatalf("ErrorCount = %d, want 2", snap.Counters.ErrorCount)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for message to be sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestShutdownRejectsNewPushes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	zero := time.Duration(0)
	if err := client.Shutdown(context.Background(), &zero); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if err := client.PushEvent(Event{Body: "late"}); err == nil {
		t.Fatalf("expected ShutdownError after shutdown")
	}
}

func TestShutdownCancelsSleepingRetry(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 10
	cfg.RetryWaitTime = retry.Constant(time.Hour)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.PushEvent(Event{Body: "x"}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	// Give the first attempt time to fail and enter its long sleep.
	time.Sleep(50 * time.Millisecond)

	zero := time.Duration(0)
	err = client.Shutdown(context.Background(), &zero)
	if err == nil {
		t.Fatalf("expected shutdown to report cancellation of the sleeping flush")
	}
}

func TestCloneReturnsSameInstanceWhenOverridesEmpty(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	client, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clone, err := client.Clone(ConfigOverrides{})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if clone != client {
		t.Fatalf("expected Clone with empty overrides to return the same instance")
	}
}

func TestCloneSharesPoolWhenURLUnchanged(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	client, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	newUA := "cloned-agent"
	clone, err := client.Clone(ConfigOverrides{UserAgent: &newUA})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if clone == client {
		t.Fatalf("expected a distinct client instance")
	}
	if clone.pool != client.pool {
		t.Fatalf("expected clone to share the transport pool when URL is unchanged")
	}
	if clone.cfg.UserAgent != newUA {
		t.Fatalf("clone did not apply override: got %q", clone.cfg.UserAgent)
	}
}

func TestCheckAvailableUsesHealthPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	client, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.CheckAvailable(context.Background()); err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if gotPath != "/services/collector/health" {
		t.Fatalf("CheckAvailable path = %q, want /services/collector/health", gotPath)
	}
}

func TestGzipEncodingSetsContentEncodingHeader(t *testing.T) {
	t.Parallel()

	var gotEncoding string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.Gzip = true
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.PushEvent(Event{Body: "x"}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	waitForFlush(t, client)

	if gotEncoding != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", gotEncoding)
	}
}

func TestEmptyTokenOmitsAuthorizationHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var sawHeader bool
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth, sawHeader = r.Header.Get("Authorization"), r.Header["Authorization"] != nil
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.Token = ""
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.PushEvent(Event{Body: "x"}); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	waitForFlush(t, client)

	if sawHeader {
		t.Fatalf("expected no Authorization header for an empty token, got %q", gotAuth)
	}
}

func TestPushMetricRejectsNonFiniteValue(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	client, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = client.PushMetric(Metric{Name: "cpu", Value: nanValue()})
	if err == nil {
		t.Fatalf("expected SerializationError for a non-finite metric value")
	}
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError, got %T: %v", err, err)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

// waitForFlush polls FlushStats until at least one message has been sent,
// or fails the test after a short deadline.
func waitForFlush(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if c.FlushStats().Counters.SentMessages > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a flush to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
