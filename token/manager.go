package token

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/clipnotes/go-clipnotes/logger"
)

const (
	// DefaultRefreshBuffer is the window before expiry during which a
	// proactive refresh is triggered.
	DefaultRefreshBuffer = 5 * time.Minute

	// DefaultRefreshInterval throttles refresh attempts to one per window.
	DefaultRefreshInterval = 60 * time.Second

	refreshKey = "refresh"
)

// RefreshFunc exchanges the current session for a new access token.
// The api layer wires this to the refresh endpoint.
type RefreshFunc func(ctx context.Context) (string, error)

// Manager holds the current bearer token and coordinates refresh.
// Concurrent callers asking for a token while a refresh is in flight all
// share the single refresh result.
type Manager struct {
	mu      sync.RWMutex
	current *Token

	refresh RefreshFunc
	buffer  time.Duration
	sfg     singleflight.Group
	limiter *rate.Limiter
	logger  logger.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshBuffer overrides the proactive refresh window.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(m *Manager) {
		m.buffer = buffer
	}
}

// WithRefreshInterval overrides the refresh throttle window.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		m.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a token manager that calls refresh whenever the held
// token is missing or inside the refresh buffer.
func NewManager(log logger.Logger, refresh RefreshFunc, opts ...Option) *Manager {
	m := &Manager{
		refresh: refresh,
		buffer:  DefaultRefreshBuffer,
		limiter: rate.NewLimiter(rate.Every(DefaultRefreshInterval), 1),
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set decodes and stores a new bearer token.
func (m *Manager) Set(raw string) error {
	tok, err := Decode(raw)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = tok
	m.mu.Unlock()
	return nil
}

// Clear drops the held token.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Current returns the held token, which may be nil.
func (m *Manager) Current() *Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns a usable bearer token, refreshing proactively when the held
// token is inside the refresh buffer. Implements httpclient.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	tok := m.Current()
	if tok != nil && !tok.ExpiresWithin(m.buffer, m.now()) {
		return tok.Raw, nil
	}
	if tok == nil && m.refresh == nil {
		return "", ErrNoToken
	}
	return m.doRefresh(ctx)
}

// ForceRefresh refreshes the token regardless of its expiry. Used by the
// api layer after a request is rejected with an auth failure.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	return m.doRefresh(ctx)
}

// doRefresh funnels all refresh paths through a single flight so that
// at most one refresh call is ever outstanding and through a rate limiter
// so that attempts stay at most one per throttle window.
func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	v, err, shared := m.sfg.Do(refreshKey, func() (any, error) {
		if m.refresh == nil {
			return nil, ErrNoToken
		}

		if !m.limiter.Allow() {
			// Inside the throttle window. A token that is merely close
			// to expiry is still usable; a missing or expired one is not.
			cur := m.Current()
			if cur != nil && !cur.Expired(m.now()) {
				m.logger.Debug().Msg("token refresh throttled, reusing current token")
				return cur.Raw, nil
			}
			return nil, ErrRefreshThrottled
		}

		m.logger.Debug().Msg("refreshing bearer token")
		raw, err := m.refresh(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("token refresh failed")
			return nil, err
		}
		if err := m.Set(raw); err != nil {
			return nil, err
		}
		m.logger.Info().Str("subject", m.Current().Subject()).Msg("bearer token refreshed")
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.logger.Debug().Msg("token refresh result shared with concurrent caller")
	}
	return v.(string), nil
}
