// Package httpclient provides the resilient HTTP client used for all
// outbound provider traffic: metadata lookups, artwork fetches, and
// voice synthesis calls.
//
// On top of the standard http.Client it layers:
//   - a circuit breaker per upstream service, shareable across clients
//   - retries with exponential backoff for transient failures
//   - transparent gzip/deflate/brotli decompression
//   - a post-decompression response size limit
//
// Credential redaction in request logs is handled by the observability
// package, not here.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

var (
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")
)

// Defaults used by DefaultConfig.
const (
	DefaultTimeout              = 30 * time.Second
	DefaultRetryAttempts        = 3
	DefaultRetryDelay           = 1 * time.Second
	DefaultRetryMaxDelay        = 30 * time.Second
	DefaultCircuitThreshold     = 5
	DefaultCircuitTimeout       = 30 * time.Second
	DefaultCircuitHalfOpenMax   = 1
	DefaultBackoffMultiplier    = 2.0
	DefaultMaxResponseSize      = 0 // 0 means no limit
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "mixarr-httpclient/1.0"
)

const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// Config holds client configuration.
type Config struct {
	// Timeout is the overall per-request timeout.
	Timeout time.Duration

	// Retry behavior: RetryAttempts retries after the initial attempt,
	// sleeping RetryDelay grown by BackoffMultiplier up to RetryMaxDelay.
	RetryAttempts     int
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
	BackoffMultiplier float64

	// Circuit breaker: the circuit opens after CircuitThreshold
	// consecutive failures, stays open for CircuitTimeout, then allows
	// up to CircuitHalfOpenMax probe requests.
	CircuitThreshold   int
	CircuitTimeout     time.Duration
	CircuitHalfOpenMax int

	// UserAgent is sent when the request carries none.
	UserAgent string

	// Logger receives request/retry/breaker events.
	Logger *slog.Logger

	// EnableDecompression transparently decodes compressed bodies.
	EnableDecompression bool

	// MaxResponseSize caps the body size in bytes, measured AFTER
	// decompression so compressed bombs cannot sidestep it. 0 disables
	// the limit.
	MaxResponseSize int64

	// AcceptableStatusCodes defines which statuses count as success for
	// the breaker. When set, ONLY these codes are acceptable, and even
	// 2xx must be listed. When nil/empty, any 2xx is acceptable. Retryable
	// statuses (429, 502, 503, 504) are retried regardless.
	//
	// The artwork fetcher uses "200-299,404": a missing cover is not a
	// provider outage.
	AcceptableStatusCodes *StatusCodeSet

	// BaseClient overrides the underlying http.Client.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		RetryAttempts:       DefaultRetryAttempts,
		RetryDelay:          DefaultRetryDelay,
		RetryMaxDelay:       DefaultRetryMaxDelay,
		BackoffMultiplier:   DefaultBackoffMultiplier,
		CircuitThreshold:    DefaultCircuitThreshold,
		CircuitTimeout:      DefaultCircuitTimeout,
		CircuitHalfOpenMax:  DefaultCircuitHalfOpenMax,
		UserAgent:           DefaultUserAgentHeader,
		Logger:              slog.Default(),
		EnableDecompression: true,
		MaxResponseSize:     DefaultMaxResponseSize,
	}
}

// Client wraps http.Client with breaker, retry, and decompression.
type Client struct {
	config  Config
	client  *http.Client
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// New creates a client with its own circuit breaker.
func New(cfg Config) *Client {
	return NewWithBreaker(cfg, nil)
}

// NewWithDefaults creates a client with DefaultConfig.
func NewWithDefaults() *Client {
	return New(DefaultConfig())
}

// NewWithBreaker creates a client around an externally managed breaker,
// so several clients hitting the same upstream share failure state. A
// nil breaker gets a private one built from the config.
func NewWithBreaker(cfg Config, breaker *CircuitBreaker) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout, cfg.CircuitHalfOpenMax)
	}

	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:  cfg,
		client:  base,
		breaker: breaker,
		logger:  cfg.Logger,
	}
}

// Do executes a request with breaker protection and retries.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes a request under the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderUserAgent) == "" && c.config.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("url", req.URL.String()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, req, attempt)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
	}
	return nil, ErrMaxRetries
}

// retryDelay returns the backoff before the given retry attempt.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.config.BackoffMultiplier)
		if delay >= c.config.RetryMaxDelay {
			return c.config.RetryMaxDelay
		}
	}
	return delay
}

// attempt performs a single request. A non-nil error means the caller
// may retry; responses with non-retryable statuses are returned as-is
// after their breaker outcome is recorded.
func (c *Client) attempt(ctx context.Context, req *http.Request, attempt int) (*http.Response, error) {
	if !c.breaker.Allow() {
		c.logger.Warn("circuit breaker open, skipping request",
			slog.String("url", req.URL.String()),
			slog.String("state", c.breaker.State().String()),
		)
		return nil, ErrCircuitOpen
	}

	start := time.Now()
	resp, err := c.client.Do(req.WithContext(ctx))
	elapsed := time.Since(start)

	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Warn("request failed",
			slog.String("url", req.URL.String()),
			slog.String("method", req.Method),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
		)
		return nil, err
	}

	if isRetryableStatus(resp.StatusCode) {
		resp.Body.Close()
		c.breaker.RecordFailure()
		c.logger.Warn("retryable status code",
			slog.String("url", req.URL.String()),
			slog.String("method", req.Method),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", elapsed),
			slog.Int("attempt", attempt),
		)
		return nil, fmt.Errorf("retryable status code: %d", resp.StatusCode)
	}

	if c.isAcceptableStatus(resp.StatusCode) {
		c.breaker.RecordSuccess()
	} else {
		// Recorded against the breaker, but handed back to the caller
		// rather than retried.
		c.breaker.RecordFailure()
		c.logger.Debug("non-acceptable status code recorded as failure",
			slog.String("url", req.URL.String()),
			slog.Int("status", resp.StatusCode),
		)
	}

	c.logger.Debug("request completed",
		slog.String("url", req.URL.String()),
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
		slog.Int64("content_length", resp.ContentLength),
	)

	if c.config.EnableDecompression {
		resp.Body = c.wrapDecompression(resp)
	}
	if c.config.MaxResponseSize > 0 {
		resp.Body = newLimitedReader(resp.Body, c.config.MaxResponseSize)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// CircuitState returns the breaker's current state.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// ResetCircuit forces the breaker closed.
func (c *Client) ResetCircuit() {
	c.breaker.Reset()
}

// StandardClient adapts this client into a plain *http.Client, for
// libraries that only accept one.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{
		Transport: &resilientTransport{client: c},
		Timeout:   c.config.Timeout,
	}
}

type resilientTransport struct {
	client *Client
}

func (t *resilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

var _ http.RoundTripper = (*resilientTransport)(nil)

// wrapDecompression wraps the body with a decoder for the declared
// content encoding. Unknown encodings pass through untouched.
func (c *Client) wrapDecompression(resp *http.Response) io.ReadCloser {
	encoding := strings.ToLower(resp.Header.Get(HeaderContentEncoding))
	switch encoding {
	case "":
		return resp.Body
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.Warn("failed to create gzip reader, returning raw body",
				slog.String("error", err.Error()),
			)
			return resp.Body
		}
		return &decompressReader{reader: reader, closer: resp.Body}
	case EncodingDeflate:
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case EncodingBrotli:
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		c.logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding),
		)
		return resp.Body
	}
}

// decompressReader pairs a decoder with the original body so Close
// releases both.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.closer.Close()
}

// limitedReader fails with ErrResponseTooLarge once more than limit
// bytes have been read. The error is sticky.
type limitedReader struct {
	rc      io.ReadCloser
	limit   int64
	read    int64
	tripped bool
}

func newLimitedReader(rc io.ReadCloser, limit int64) *limitedReader {
	return &limitedReader{rc: rc, limit: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.tripped {
		return 0, ErrResponseTooLarge
	}

	n, err := l.rc.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		l.tripped = true
		return n, ErrResponseTooLarge
	}
	return n, err
}

func (l *limitedReader) Close() error {
	return l.rc.Close()
}

// isRetryableStatus reports whether a status indicates a transient
// upstream condition worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isAcceptableStatus reports whether a status counts as success for
// breaker accounting. See Config.AcceptableStatusCodes.
func (c *Client) isAcceptableStatus(code int) bool {
	if !c.config.AcceptableStatusCodes.IsEmpty() {
		return c.config.AcceptableStatusCodes.Contains(code)
	}
	return code >= 200 && code < 300
}

// CircuitState is the breaker state machine position.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker tracks consecutive failures against one upstream.
// Its config pointer can be swapped at runtime without losing counter
// state, which is how config reloads adjust live breakers.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           CircuitState
	failures        int
	successes       int
	halfOpenCount   int
	lastFailureTime time.Time
	lastSuccessTime time.Time

	// lifetime counters, never reset
	totalRequests  int64
	totalSuccesses int64
	totalFailures  int64
	errorCounts    ErrorCategoryCount

	configMu sync.RWMutex
	config   *CircuitBreakerProfileConfig
}

// NewCircuitBreaker creates a breaker with fixed parameters. Prefer
// NewCircuitBreakerWithConfig when the config may be reloaded.
func NewCircuitBreaker(threshold int, timeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(&CircuitBreakerProfileConfig{
		FailureThreshold: threshold,
		ResetTimeout:     timeout,
		HalfOpenMax:      halfOpenMax,
	})
}

// NewCircuitBreakerWithConfig creates a breaker around a live config
// pointer. A nil config gets the defaults.
func NewCircuitBreakerWithConfig(cfg *CircuitBreakerProfileConfig) *CircuitBreaker {
	if cfg == nil {
		def := DefaultProfileConfig()
		cfg = &def
	}
	return &CircuitBreaker{state: CircuitClosed, config: cfg}
}

func (cb *CircuitBreaker) getConfig() *CircuitBreakerProfileConfig {
	cb.configMu.RLock()
	defer cb.configMu.RUnlock()
	return cb.config
}

// UpdateConfig swaps the config, preserving breaker state.
func (cb *CircuitBreaker) UpdateConfig(cfg *CircuitBreakerProfileConfig) {
	cb.configMu.Lock()
	defer cb.configMu.Unlock()
	cb.config = cfg
}

// Config returns a copy of the active configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerProfileConfig {
	cfg := cb.getConfig()
	if cfg == nil {
		return DefaultProfileConfig()
	}
	return *cfg
}

// Allow reports whether a request may proceed, advancing the state
// machine on open->half-open transitions.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cfg := cb.getConfig()
	if cfg == nil {
		return true
	}

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if time.Since(cb.lastFailureTime) < cfg.ResetTimeout {
			return false
		}
		// The transition request consumes the first probe slot.
		cb.state = CircuitHalfOpen
		cb.halfOpenCount = 1
		return true

	case CircuitHalfOpen:
		if cb.halfOpenCount >= cfg.HalfOpenMax {
			return false
		}
		cb.halfOpenCount++
		return true
	}
	return false
}

// RecordSuccess notes a successful request. In half-open this closes
// the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes++
	cb.totalRequests++
	cb.totalSuccesses++
	cb.lastSuccessTime = time.Now()
	cb.errorCounts.Increment(ErrorCategorySuccess2xx)

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.failures = 0
		cb.successes = 0
	}
}

// RecordFailure notes a failed request under the generic 5xx category.
func (cb *CircuitBreaker) RecordFailure() {
	cb.RecordFailureWithCategory(ErrorCategoryServerError5xx)
}

// RecordFailureWithCategory notes a failed request. Crossing the
// threshold in closed state, or any failure in half-open, opens the
// circuit.
func (cb *CircuitBreaker) RecordFailureWithCategory(category ErrorCategory) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()
	cb.totalRequests++
	cb.totalFailures++
	cb.errorCounts.Increment(category)

	threshold := DefaultCircuitThreshold
	if cfg := cb.getConfig(); cfg != nil && cfg.FailureThreshold > 0 {
		threshold = cfg.FailureThreshold
	}

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= threshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker closed and clears consecutive counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCount = 0
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// CircuitBreakerStats is a point-in-time breaker snapshot.
type CircuitBreakerStats struct {
	State               CircuitState                `json:"state"`
	Failures            int                         `json:"failures"`
	Successes           int                         `json:"successes"`
	ConsecutiveFailures int                         `json:"consecutive_failures"`
	TotalRequests       int64                       `json:"total_requests"`
	TotalSuccesses      int64                       `json:"total_successes"`
	TotalFailures       int64                       `json:"total_failures"`
	ErrorCounts         ErrorCategoryCount          `json:"error_counts"`
	LastFailure         time.Time                   `json:"last_failure,omitempty"`
	LastSuccess         time.Time                   `json:"last_success,omitempty"`
	Config              CircuitBreakerProfileConfig `json:"config"`
}

// Stats snapshots the breaker counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:               cb.state,
		Failures:            cb.failures,
		Successes:           cb.successes,
		ConsecutiveFailures: cb.failures,
		TotalRequests:       cb.totalRequests,
		TotalSuccesses:      cb.totalSuccesses,
		TotalFailures:       cb.totalFailures,
		ErrorCounts:         cb.errorCounts.Clone(),
		LastFailure:         cb.lastFailureTime,
		LastSuccess:         cb.lastSuccessTime,
		Config:              cb.Config(),
	}
}
