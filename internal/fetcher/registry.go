// Package fetcher provides the process-wide HTTP layer used by providers.
//
// A Registry owns one connection pool and hands out Sessions keyed by
// provider id. Each Session has its own cookie jar and default headers;
// every request goes through the same retry, per-host concurrency and
// rate-limit policy.
package fetcher

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mangashelf/mangashelf/internal/ratelimit"
)

// DefaultUserAgent is sent when a session does not set its own.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Options tunes the shared transport and retry policy.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Deadline bounds a logical request including every retry and backoff.
	Deadline    time.Duration
	MaxAttempts int
	PerHost     int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxBodySize caps how much of a response body is read.
	MaxBodySize int64
	// CookiesDir is where Session.SaveCookies writes jars. Empty disables persistence.
	CookiesDir string
}

// DefaultOptions returns the stock policy: connect 10s, read 30s, 5 attempts, 4 per host.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		Deadline:       2 * time.Minute,
		MaxAttempts:    5,
		PerHost:        4,
		BackoffBase:    500 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		MaxBodySize:    64 << 20,
	}
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.Deadline <= 0 {
		o.Deadline = def.Deadline
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.PerHost <= 0 {
		o.PerHost = def.PerHost
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = def.BackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = def.BackoffMax
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = def.MaxBodySize
	}
}

// Registry is the process-wide session map.
type Registry struct {
	opts      Options
	transport *http.Transport
	limiter   *ratelimit.Keyed
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	hosts    map[string]*semaphore.Weighted
}

// NewRegistry creates a registry with a shared connection pool.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	opts.normalize()

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.PerHost,
		MaxConnsPerHost:       opts.PerHost,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Registry{
		opts:      opts,
		transport: transport,
		limiter:   ratelimit.New(0, 1),
		logger:    logger,
		sessions:  make(map[string]*Session),
		hosts:     make(map[string]*semaphore.Weighted),
	}
}

// Session returns the session for id, creating it with cfg on first use.
// Later calls ignore cfg.
func (r *Registry) Session(id string, cfg SessionConfig) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(r, id, cfg)
	r.sessions[id] = s
	return s
}

// Lookup returns an existing session.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// SetHostRate limits requests to host across all sessions.
func (r *Registry) SetHostRate(host string, rps float64, burst int) {
	r.limiter.SetLimit(host, rps, burst)
}

// CancelInFlight aborts every request currently running in every session.
// It does not block and later requests are unaffected.
func (r *Registry) CancelInFlight() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.CancelInFlight()
	}
}

// SaveCookies persists every session's jar.
func (r *Registry) SaveCookies() error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.SaveCookies(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close saves cookies and drops idle connections.
func (r *Registry) Close() error {
	err := r.SaveCookies()
	r.transport.CloseIdleConnections()
	return err
}

func (r *Registry) hostSlot(host string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	sem, ok := r.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(int64(r.opts.PerHost))
		r.hosts[host] = sem
	}
	return sem
}
