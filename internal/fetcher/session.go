package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/publicsuffix"
)

// sniffLen is how much of a body is inspected to detect its media type.
const sniffLen = 128

// SessionConfig holds the default headers a provider wants on every request.
type SessionConfig struct {
	UserAgent string
	Referer   string
	Origin    string
	Headers   map[string]string
	// RPS limits requests per second to each host this session talks to. Zero is unlimited.
	RPS float64
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// MediaType is sniffed from the body, not taken from Content-Type.
	MediaType string
	// URL is the final URL after redirects.
	URL *url.URL
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindDecode, URL: r.URL.String(), Attempts: 1, Err: err}
	}
	return nil
}

// Image is a page or cover realized to bytes.
type Image struct {
	Data      []byte
	MediaType string
	// Name is the last path segment of the final URL without its query string.
	Name string
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a header on a single request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithReferer overrides the session referer for a single request.
func WithReferer(referer string) RequestOption {
	return WithHeader("Referer", referer)
}

// WithQuery merges params into the request URL.
func WithQuery(params url.Values) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		r.URL.RawQuery = q.Encode()
	}
}

// Session is an HTTP client with its own cookies and default headers.
type Session struct {
	id       string
	registry *Registry
	client   *http.Client
	jar      *cookiejar.Jar
	cfg      SessionConfig
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	origins map[string]*url.URL
}

func newSession(r *Registry, id string, cfg SessionConfig) *Session {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	s := &Session{
		id:       id,
		registry: r,
		jar:      jar,
		cfg:      cfg,
		logger:   r.logger.With("session", id),
		origins:  make(map[string]*url.URL),
	}
	s.client = &http.Client{
		Transport: r.transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			s.remember(req.URL)
			return nil
		},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.loadCookies(); err != nil {
		s.logger.Warn("failed to load cookies", "error", err)
	}
	return s
}

// ID returns the key the session is registered under.
func (s *Session) ID() string {
	return s.id
}

// Get performs a GET request.
func (s *Session) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, nil, "", opts...)
}

// PostForm performs a POST with an urlencoded body.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values, opts ...RequestOption) (*Response, error) {
	return s.Do(ctx, http.MethodPost, rawURL, []byte(form.Encode()), "application/x-www-form-urlencoded", opts...)
}

// PostJSON performs a POST with v encoded as JSON.
func (s *Session) PostJSON(ctx context.Context, rawURL string, v any, opts ...RequestOption) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return s.Do(ctx, http.MethodPost, rawURL, body, "application/json", opts...)
}

// FetchImage GETs an image and checks that the sniffed media type is an image.
func (s *Session) FetchImage(ctx context.Context, rawURL string, opts ...RequestOption) (*Image, error) {
	opts = append([]RequestOption{WithHeader("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")}, opts...)
	resp, err := s.Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(resp.MediaType, "image/") {
		return nil, &Error{Kind: KindDecode, URL: rawURL, Attempts: 1, Err: fmt.Errorf("not an image: %s", resp.MediaType)}
	}
	return &Image{Data: resp.Body, MediaType: resp.MediaType, Name: FileName(resp.URL)}, nil
}

// Do runs a request through the retry loop. body may be nil.
// A non-2xx final status returns both the response and a KindHTTPStatus error.
func (s *Session) Do(ctx context.Context, method, rawURL string, body []byte, contentType string, opts ...RequestOption) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	ctx, done := s.requestContext(ctx)
	defer done()

	policy := s.registry.opts
	var (
		last     *Response
		lastErr  error
		attempts int
	)

	for attempts = 1; attempts <= policy.MaxAttempts; attempts++ {
		resp, retryAfter, err := s.attempt(ctx, method, u, body, contentType, opts)
		last, lastErr = resp, err

		if err == nil && !retryableStatus(resp.StatusCode) {
			break
		}
		if err != nil && (ctx.Err() != nil || !retryableErr(err)) {
			break
		}
		if attempts == policy.MaxAttempts {
			break
		}

		wait := backoff(policy.BackoffBase, policy.BackoffMax, attempts)
		if retryAfter > 0 {
			wait = retryAfter
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
			s.logger.Debug("retry would exceed deadline", "url", rawURL, "wait", wait)
			break
		}

		s.logger.Debug("retrying request", "url", rawURL, "attempt", attempts, "wait", wait, "error", err)
		if !sleep(ctx, wait) {
			break
		}
	}
	attempts = min(attempts, policy.MaxAttempts)

	if lastErr != nil {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
		}
		return nil, &Error{Kind: classify(lastErr), URL: rawURL, Attempts: attempts, Err: lastErr}
	}
	if last.StatusCode < 200 || last.StatusCode > 299 {
		return last, &Error{Kind: KindHTTPStatus, StatusCode: last.StatusCode, URL: rawURL, Attempts: attempts}
	}
	return last, nil
}

// attempt performs one round trip while holding a per-host slot.
func (s *Session) attempt(ctx context.Context, method string, u *url.URL, body []byte, contentType string, opts []RequestOption) (*Response, time.Duration, error) {
	host := u.Hostname()

	if err := s.registry.limiter.Wait(ctx, host); err != nil {
		return nil, 0, err
	}

	slot := s.registry.hostSlot(host)
	if err := slot.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer slot.Release(1)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, permanent(err)
	}
	s.applyDefaults(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, opt := range opts {
		opt(req)
	}

	s.remember(u)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	limit := s.registry.opts.MaxBodySize
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, 0, err
	}
	if int64(len(data)) > limit {
		return nil, 0, permanent(fmt.Errorf("%w: over %d bytes", errBodyTooLarge, limit))
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		MediaType:  sniff(data),
		URL:        resp.Request.URL,
	}
	return out, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), nil
}

func (s *Session) applyDefaults(req *http.Request) {
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if s.cfg.Referer != "" {
		req.Header.Set("Referer", s.cfg.Referer)
	}
	if s.cfg.Origin != "" {
		req.Header.Set("Origin", s.cfg.Origin)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	if s.cfg.RPS > 0 {
		s.registry.SetHostRate(req.URL.Hostname(), s.cfg.RPS, 1)
	}
}

// requestContext ties a request to the caller, the logical deadline and the
// session's cancel switch.
func (s *Session) requestContext(parent context.Context) (context.Context, func()) {
	s.mu.Lock()
	sessionCtx := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.registry.opts.Deadline)
	stop := context.AfterFunc(sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// CancelInFlight aborts running requests of this session without waiting.
func (s *Session) CancelInFlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// SetCookies stores cookies for rawURL, e.g. ones obtained from a browser hand-off.
func (s *Session) SetCookies(rawURL string, cookies []*http.Cookie) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	s.remember(u)
	s.jar.SetCookies(u, cookies)
}

func (s *Session) remember(u *url.URL) {
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	s.mu.Lock()
	s.origins[origin.String()] = origin
	s.mu.Unlock()
}

func sniff(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	head := data[:min(len(data), sniffLen)]
	mt := mimetype.Detect(head).String()
	mt, _, _ = strings.Cut(mt, ";")
	return mt
}

// FileName returns the last path segment of u, query string excluded.
func FileName(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	return p
}
