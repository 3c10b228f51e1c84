package httpclient

import (
	"context"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnotes/go-clipnotes/logger"
)

func createTestLogger() logger.Logger {
	return logger.New("error", false)
}

type staticTokenSource struct {
	token string
	calls int64
	err   error
}

func (s *staticTokenSource) Token(_ context.Context) (string, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func fastClient(log logger.Logger, maxAttempts int) Client {
	return NewBuilder(log).
		WithTimeout(250 * time.Millisecond).
		WithRetries(maxAttempts, 1*time.Millisecond).
		Build()
}

func TestBuilderDefaults(t *testing.T) {
	built := NewBuilder(createTestLogger()).Build()
	impl, ok := built.(*client)
	require.True(t, ok)

	assert.Equal(t, DefaultTimeout, impl.config.Timeout)
	assert.Equal(t, DefaultMaxAttempts, impl.config.MaxAttempts)
	assert.Equal(t, DefaultBackoffBase, impl.config.BackoffBase)
	assert.Equal(t, DefaultTimeoutGrowth, impl.config.TimeoutGrowth)
}

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp, err := fastClient(createTestLogger(), 1).Post(context.Background(), &Request{
		URL:  server.URL,
		Body: []byte(`{"hello":"world"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, 1, resp.Stats.Attempts)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var hits int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	resp, err := fastClient(createTestLogger(), 5).Get(context.Background(), &Request{URL: server.URL})

	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, resp.Stats.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt64(&hits))
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	var hits int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(nethttp.StatusBadGateway)
	}))
	defer server.Close()

	_, err := fastClient(createTestLogger(), 3).Get(context.Background(), &Request{URL: server.URL})

	require.Error(t, err)
	assert.True(t, IsStatusError(err, nethttp.StatusBadGateway))
	assert.EqualValues(t, 3, atomic.LoadInt64(&hits))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var hits int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(nethttp.StatusBadRequest)
	}))
	defer server.Close()

	_, err := fastClient(createTestLogger(), 5).Get(context.Background(), &Request{URL: server.URL})

	require.Error(t, err)
	assert.True(t, IsStatusError(err, nethttp.StatusBadRequest))
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestDoClassifiesUnauthorizedAsAuth(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := fastClient(createTestLogger(), 2).Get(context.Background(), &Request{URL: server.URL})

	require.Error(t, err)
	assert.Equal(t, ClassAuth, Classify(err))
}

func TestDoRetriesTimeouts(t *testing.T) {
	var hits int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	c := NewBuilder(createTestLogger()).
		WithTimeout(20 * time.Millisecond).
		WithTimeoutGrowth(1). // keep every attempt on the short deadline
		WithRetries(3, 1*time.Millisecond).
		Build()

	_, err := c.Get(context.Background(), &Request{URL: server.URL})

	require.Error(t, err)
	assert.Equal(t, ClassTimeout, Classify(err))
	assert.EqualValues(t, 3, atomic.LoadInt64(&hits))
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	// Reserve a port and close it so connections are refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = fastClient(createTestLogger(), 2).Get(context.Background(), &Request{URL: url})

	require.Error(t, err)
	assert.Equal(t, ClassNetwork, Classify(err))
}

func TestDoUsesTokenSourcePerAttempt(t *testing.T) {
	var hits int64
	var lastAuth atomic.Value
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		if atomic.AddInt64(&hits, 1) < 2 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	source := &staticTokenSource{token: "tok-123"}
	c := NewBuilder(createTestLogger()).
		WithTimeout(time.Second).
		WithRetries(3, 1*time.Millisecond).
		WithTokenSource(source).
		Build()

	resp, err := c.Get(context.Background(), &Request{URL: server.URL, RequiresAuth: true})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, "Bearer tok-123", lastAuth.Load())
	assert.EqualValues(t, 2, atomic.LoadInt64(&source.calls))
}

func TestDoValidation(t *testing.T) {
	c := fastClient(createTestLogger(), 1)

	t.Run("nil request", func(t *testing.T) {
		_, err := c.Get(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request cannot be nil")
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := c.Get(context.Background(), &Request{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "URL cannot be empty")
	})

	t.Run("auth without token source", func(t *testing.T) {
		_, err := c.Get(context.Background(), &Request{URL: "http://localhost", RequiresAuth: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token source")
	})
}

func TestDoRequestInterceptor(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "true", r.Header.Get("X-Intercepted"))
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	c := NewBuilder(createTestLogger()).
		WithRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
			req.Header.Set("X-Intercepted", "true")
			return nil
		}).
		Build()

	resp, err := c.Get(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestAttemptTimeoutEscalation(t *testing.T) {
	impl := NewBuilder(createTestLogger()).
		WithTimeout(2 * time.Second).
		Build().(*client)

	assert.Equal(t, 2*time.Second, impl.attemptTimeout(&Request{}, 0))
	assert.Equal(t, 3*time.Second, impl.attemptTimeout(&Request{}, 1))
	assert.Equal(t, 4500*time.Millisecond, impl.attemptTimeout(&Request{}, 2))

	// Per-request override takes precedence over the client default.
	assert.Equal(t, time.Second, impl.attemptTimeout(&Request{Timeout: time.Second}, 0))
	assert.Equal(t, 1500*time.Millisecond, impl.attemptTimeout(&Request{Timeout: time.Second}, 1))
}

func TestBackoffDelayIsCappedWithJitter(t *testing.T) {
	impl := NewBuilder(createTestLogger()).
		WithRetries(5, 2*time.Second).
		Build().(*client)

	for attempt := 0; attempt < 25; attempt++ {
		d := impl.backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}
