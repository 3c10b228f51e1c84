package httpclient

import (
	"context"
	nethttp "net/http"
	"time"
)

// Client defines the REST client interface for making HTTP requests.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request describes an outgoing HTTP request.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte

	// RequiresAuth attaches a bearer token from the configured TokenSource.
	RequiresAuth bool

	// Timeout overrides the client default for this request. The effective
	// per-attempt timeout still grows on each retry.
	Timeout time.Duration
}

// Response represents an HTTP response with tracking information.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics.
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
}

// TokenSource supplies a bearer token for authenticated requests.
// It is consulted once per attempt so a token refreshed between retries
// is picked up by the replay.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestInterceptor is called before sending each attempt.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// Config holds the REST client configuration.
type Config struct {
	// Timeout is the base per-attempt timeout. Each retry grows it by
	// TimeoutGrowth.
	Timeout time.Duration

	// MaxAttempts is the total number of attempts (initial call included).
	MaxAttempts int

	// BackoffBase is the base delay for exponential backoff between retries.
	BackoffBase time.Duration

	// TimeoutGrowth is the per-retry timeout multiplier.
	TimeoutGrowth float64

	TokenSource         TokenSource
	RequestInterceptors []RequestInterceptor
	DefaultHeaders      map[string]string
}
