// Package transport builds the keep-alive-enabled, per-host-socket-capped
// HTTP transport the collector client POSTs through, and a registry that
// lets clones of a client pointed at the same URL share one connection
// pool instead of multiplying the TCP connection footprint.
package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the transport's connection pool and TLS policy.
type Options struct {
	KeepAlive             bool
	MaxSockets            int
	TLSInsecureSkipVerify bool
	IdleTimeout           time.Duration
}

// DefaultOptions mirrors the client configuration defaults.
func DefaultOptions() Options {
	return Options{
		KeepAlive:   true,
		MaxSockets:  256,
		IdleTimeout: 90 * time.Second,
	}
}

// New builds a *http.Transport from opts. Each call produces an
// independent transport (and therefore its own connection pool); use a
// Registry to share one across clients that target the same endpoint.
func New(opts Options) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     !opts.KeepAlive,
		MaxIdleConnsPerHost:   opts.MaxSockets,
		MaxConnsPerHost:       opts.MaxSockets,
		MaxIdleConns:          opts.MaxSockets,
		IdleConnTimeout:       opts.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.TLSInsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}

// Pool pairs a shared transport with an in-flight request counter, since
// *http.Transport exposes no live socket-count introspection of its own.
type Pool struct {
	Transport *http.Transport
	inFlight  int64
}

// Acquire marks the start of a request through this pool; call the
// returned func when the request completes.
func (p *Pool) Acquire() func() {
	atomic.AddInt64(&p.inFlight, 1)
	return func() { atomic.AddInt64(&p.inFlight, -1) }
}

// Status reports a best-effort snapshot of pool usage.
type Status struct {
	InFlight   int64
	MaxSockets int
}

// Status returns the current in-flight count alongside the configured
// socket cap.
func (p *Pool) Status(maxSockets int) Status {
	return Status{InFlight: atomic.LoadInt64(&p.inFlight), MaxSockets: maxSockets}
}

// Registry is a process-wide map from pool key to shared Pool, so clones
// of a client pointed at the same URL reuse one connection pool. Entries
// are never evicted: the number of distinct endpoints a process ever
// talks to is small in practice, and this is an accepted simplification
// rather than a true weak-valued map.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Get returns the existing pool for key if present, otherwise builds one
// from opts, stores it, and returns it.
func (r *Registry) Get(key string, opts Options) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[key]; ok {
		return p
	}
	p := &Pool{Transport: New(opts)}
	r.pools[key] = p
	return p
}

// Global is the process-wide default registry clients share unless a
// caller supplies its own.
var Global = NewRegistry()
