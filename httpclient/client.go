package httpclient

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"io"
	"math"
	"math/big"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipnotes/go-clipnotes/logger"
)

const (
	// DefaultTimeout is the base per-attempt timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the total number of attempts for a request.
	DefaultMaxAttempts = 5

	// DefaultBackoffBase is the base delay for exponential backoff.
	DefaultBackoffBase = 2 * time.Second

	// DefaultTimeoutGrowth is the per-retry timeout multiplier. A request
	// that timed out gets progressively more time on each replay.
	DefaultTimeoutGrowth = 1.5

	requestIDHeader = "X-Request-ID"
)

// client implements the Client interface.
type client struct {
	httpClient          *nethttp.Client
	logger              logger.Logger
	config              *Config
	requestInterceptors []RequestInterceptor
}

// NewClient creates a new REST client with default configuration.
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the REST client.
type Builder struct {
	config     *Config
	httpClient *nethttp.Client
	logger     logger.Logger
}

// NewBuilder creates a new client builder.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			Timeout:             DefaultTimeout,
			MaxAttempts:         DefaultMaxAttempts,
			BackoffBase:         DefaultBackoffBase,
			TimeoutGrowth:       DefaultTimeoutGrowth,
			RequestInterceptors: []RequestInterceptor{},
			DefaultHeaders:      make(map[string]string),
		},
		logger: log,
	}
}

// WithTimeout sets the base per-attempt timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry configuration: total attempts and backoff base.
func (b *Builder) WithRetries(maxAttempts int, backoffBase time.Duration) *Builder {
	b.config.MaxAttempts = maxAttempts
	b.config.BackoffBase = backoffBase
	return b
}

// WithTimeoutGrowth sets the per-retry timeout multiplier.
func (b *Builder) WithTimeoutGrowth(growth float64) *Builder {
	b.config.TimeoutGrowth = growth
	return b
}

// WithTokenSource sets the bearer token source for authenticated requests.
func (b *Builder) WithTokenSource(source TokenSource) *Builder {
	b.config.TokenSource = source
	return b
}

// WithDefaultHeader adds a default header sent with all requests.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor.
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithHTTPClient sets a custom underlying HTTP client.
func (b *Builder) WithHTTPClient(c *nethttp.Client) *Builder {
	b.httpClient = c
	return b
}

// Build creates the REST client with the configured options.
func (b *Builder) Build() Client {
	httpClient := b.httpClient
	if httpClient == nil {
		// Per-attempt deadlines are enforced via context, not the
		// transport timeout, so escalation works per retry.
		httpClient = &nethttp.Client{}
	}
	if b.config.MaxAttempts < 1 {
		b.config.MaxAttempts = 1
	}
	if b.config.TimeoutGrowth < 1 {
		b.config.TimeoutGrowth = 1
	}
	return &client{
		httpClient:          httpClient,
		logger:              b.logger,
		config:              b.config,
		requestInterceptors: b.config.RequestInterceptors,
	}
}

// Get performs a GET request.
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request.
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request.
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Delete performs a DELETE request.
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method. Timeouts and
// network failures are retried with exponential backoff up to MaxAttempts;
// each retry gets a longer per-attempt deadline. Retryable 5xx responses
// are retried the same way. Auth failures are never retried here: recovery
// through token refresh is the caller's decision.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()
	maxAttempts := c.config.MaxAttempts

	for attempt := 0; ; attempt++ {
		resp, err := c.doAttempt(ctx, method, req, requestID, attempt)
		if err != nil {
			class := Classify(err)
			if (class == ClassTimeout || class == ClassNetwork) && attempt+1 < maxAttempts {
				if sleepErr := c.sleepBackoff(ctx, attempt); sleepErr != nil {
					return nil, sleepErr
				}
				continue
			}
			return nil, err
		}

		resp.Stats = Stats{
			ElapsedTime: time.Since(start),
			Attempts:    attempt + 1,
		}

		if IsSuccessStatus(resp.StatusCode) {
			c.logResponse(resp, requestID)
			return resp, nil
		}

		if c.isRetryableStatus(resp.StatusCode) && attempt+1 < maxAttempts {
			if sleepErr := c.sleepBackoff(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		c.logResponse(resp, requestID)
		return resp, NewStatusError("request failed", resp.StatusCode, resp.Body)
	}
}

// doAttempt executes a single attempt under its escalated deadline.
func (c *client) doAttempt(ctx context.Context, method string, req *Request, requestID string, attempt int) (*Response, error) {
	timeout := c.attemptTimeout(req, attempt)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildRequest(attemptCtx, method, req, requestID)
	if err != nil {
		return nil, err
	}

	c.logRequest(method, req, requestID, attempt)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("request timed out", timeout)
		}
		return nil, NewNetworkError("request execution failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("response read timed out", timeout)
		}
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

// attemptTimeout returns the per-attempt deadline, grown per retry.
func (c *client) attemptTimeout(req *Request, attempt int) time.Duration {
	base := c.config.Timeout
	if req.Timeout > 0 {
		base = req.Timeout
	}
	if attempt == 0 {
		return base
	}
	grown := float64(base) * math.Pow(c.config.TimeoutGrowth, float64(attempt))
	return time.Duration(grown)
}

// sleepBackoff waits the exponential backoff delay for the given attempt,
// aborting early if the parent context is cancelled.
func (c *client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := c.backoffDelay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoffDelay returns the exponential backoff delay for the given attempt,
// using BackoffBase as the base and capping to a reasonable maximum.
func (c *client) backoffDelay(attempt int) time.Duration {
	base := c.config.BackoffBase
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	// Cap attempt to avoid overflow when computing multiplier
	if attempt > 20 { // 2^20 = 1,048,576
		attempt = 20
	}
	mult := 1 << attempt
	d := base * time.Duration(mult)
	const maxBackoff = 30 * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	// Full jitter: random duration in [0, d)
	if d <= 0 {
		return base
	}
	maxN := big.NewInt(int64(d))
	n, err := crand.Int(crand.Reader, maxN)
	if err != nil {
		return d
	}
	return time.Duration(n.Int64())
}

// validateRequest validates the request before sending.
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	if req.RequiresAuth && c.config.TokenSource == nil {
		return NewValidationError("authenticated request without a token source", "token_source")
	}
	return nil
}

// buildRequest constructs an *http.Request, applies headers/auth, and runs
// request interceptors.
func (c *client) buildRequest(ctx context.Context, method string, req *Request, requestID string) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewNetworkError("failed to create HTTP request", err)
	}

	c.applyHeaders(httpReq, req, requestID)

	if req.RequiresAuth {
		token, err := c.config.TokenSource.Token(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, err
		}
	}
	return httpReq, nil
}

// applyHeaders applies default and request-specific headers.
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request, requestID string) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpReq.Header.Set(requestIDHeader, requestID)
}

func (c *client) isRetryableStatus(code int) bool {
	return code >= 500 && code < 600
}

// logRequest logs the outgoing attempt.
func (c *client) logRequest(method string, req *Request, requestID string, attempt int) {
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", req.URL).
		Str("request_id", requestID).
		Int("attempt", attempt+1)

	if len(req.Headers) > 0 {
		logEvent = logEvent.Interface("headers", req.Headers)
	}

	logEvent.Msg("REST client request")
}

// logResponse logs the incoming response.
func (c *client) logResponse(resp *Response, requestID string) {
	c.logger.Debug().
		Str("direction", "inbound").
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int("attempts", resp.Stats.Attempts).
		Msg("REST client response")
}

func isTimeout(err error) bool {
	return Classify(err) == ClassTimeout
}
