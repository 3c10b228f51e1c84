package api

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnotes/go-clipnotes/config"
	"github.com/clipnotes/go-clipnotes/logger"
	"github.com/clipnotes/go-clipnotes/session"
	"github.com/clipnotes/go-clipnotes/storage"
	"github.com/clipnotes/go-clipnotes/token"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "test", Version: "v0", Env: config.EnvDevelopment},
		API: config.APIConfig{
			BaseURL:       baseURL,
			Timeout:       2 * time.Second,
			MaxAttempts:   2,
			BackoffBase:   time.Millisecond,
			TimeoutGrowth: 1.5,
		},
		Auth: config.AuthConfig{
			RefreshBuffer:   5 * time.Minute,
			RefreshInterval: time.Minute,
			CreditsTTL:      time.Minute,
		},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Log:     config.LogConfig{Level: "error"},
	}
}

func testLogger() logger.Logger {
	return logger.New("error", false)
}

func mintToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := token.Claims{
		Email: subject + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func writeJSON(t *testing.T, w nethttp.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

// fakeService is a minimal in-process stand-in for the ClipNotes API.
type fakeService struct {
	t *testing.T

	accessToken   string // token currently accepted by authed endpoints
	refreshedTo   string // token handed out by the refresh endpoint
	refuseLogin   bool
	refuseRefresh bool
	rejectAll     bool // reject every authed request regardless of token

	loginHits    int64
	refreshHits  int64
	verifyHits   int64
	generateHits int64
	creditsHits  int64
	checkoutHits int64

	// generateRejectFirst makes the first generate call fail with 401
	// even when the presented token is the accepted one.
	generateRejectFirst bool

	mu sync.Mutex
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	svc := &fakeService{t: t}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("POST /auth/login", svc.handleLogin)
	mux.HandleFunc("POST /auth/refresh", svc.handleRefresh)
	mux.HandleFunc("GET /auth/verify", svc.authed(svc.handleVerify))
	mux.HandleFunc("POST /chapters/generate", svc.authed(svc.handleGenerate))
	mux.HandleFunc("GET /credits", svc.authed(svc.handleCredits))
	mux.HandleFunc("POST /payments/checkout", svc.authed(svc.handleCheckout))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return svc, server
}

func (s *fakeService) acceptedToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *fakeService) setAcceptedToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tok
}

func (s *fakeService) authed(next nethttp.HandlerFunc) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if s.rejectAll || r.Header.Get("Authorization") != "Bearer "+s.acceptedToken() {
			writeJSON(s.t, w, nethttp.StatusUnauthorized, errorBody{Error: "token rejected"})
			return
		}
		next(w, r)
	}
}

func (s *fakeService) handleLogin(w nethttp.ResponseWriter, r *nethttp.Request) {
	atomic.AddInt64(&s.loginHits, 1)

	var req LoginRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

	if s.refuseLogin {
		writeJSON(s.t, w, nethttp.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}

	writeJSON(s.t, w, nethttp.StatusOK, LoginResponse{
		Token:        s.acceptedToken(),
		RefreshToken: "refresh-1",
		User:         session.User{ID: "u-1", Email: req.Email},
	})
}

func (s *fakeService) handleRefresh(w nethttp.ResponseWriter, r *nethttp.Request) {
	atomic.AddInt64(&s.refreshHits, 1)

	var req RefreshRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	assert.NotEmpty(s.t, req.RefreshToken)

	if s.refuseRefresh {
		writeJSON(s.t, w, nethttp.StatusUnauthorized, errorBody{Error: "refresh token revoked"})
		return
	}

	s.setAcceptedToken(s.refreshedTo)
	writeJSON(s.t, w, nethttp.StatusOK, RefreshResponse{Token: s.refreshedTo, RefreshToken: "refresh-2"})
}

func (s *fakeService) handleVerify(w nethttp.ResponseWriter, _ *nethttp.Request) {
	atomic.AddInt64(&s.verifyHits, 1)
	writeJSON(s.t, w, nethttp.StatusOK, VerifyResponse{Valid: true, User: &session.User{ID: "u-1"}})
}

func (s *fakeService) handleGenerate(w nethttp.ResponseWriter, r *nethttp.Request) {
	hit := atomic.AddInt64(&s.generateHits, 1)

	if s.generateRejectFirst && hit == 1 {
		writeJSON(s.t, w, nethttp.StatusUnauthorized, errorBody{Error: "token rejected"})
		return
	}

	var req GenerateChaptersRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	assert.NotEmpty(s.t, req.VideoID)

	writeJSON(s.t, w, nethttp.StatusOK, GenerateChaptersResponse{
		Chapters: []Chapter{
			{Start: 0, Title: "Intro", Summary: "Opening remarks"},
			{Start: 63.5, Title: "Main topic", Summary: "The core argument"},
		},
		CreditsRemaining: 9,
	})
}

func (s *fakeService) handleCredits(w nethttp.ResponseWriter, _ *nethttp.Request) {
	atomic.AddInt64(&s.creditsHits, 1)
	writeJSON(s.t, w, nethttp.StatusOK, CreditsResponse{Credits: 42})
}

func (s *fakeService) handleCheckout(w nethttp.ResponseWriter, r *nethttp.Request) {
	atomic.AddInt64(&s.checkoutHits, 1)

	var req CheckoutRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

	writeJSON(s.t, w, nethttp.StatusOK, CheckoutResponse{CheckoutURL: "https://pay.example.com/c/123"})
}

func newTestClient(t *testing.T, baseURL string, st storage.Store) *Client {
	t.Helper()
	if st == nil {
		st = storage.NewMemoryStore()
	}
	return New(testConfig(baseURL), testLogger(), st)
}

func TestLoginSuccess(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	st := storage.NewMemoryStore()
	c := newTestClient(t, server.URL, st)

	sess, err := c.Login(context.Background(), "u@example.com", "hunter22secret")

	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, "u@example.com", sess.User.Email)
	assert.Equal(t, svc.acceptedToken(), sess.Token)
	assert.Equal(t, "refresh-1", sess.RefreshToken)

	// Session blob was persisted: a second client restores it.
	restored, err := newTestClient(t, server.URL, st).Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, restored.IsAuthenticated)
	assert.Equal(t, sess.Token, restored.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, server := newFakeService(t)
	svc.refuseLogin = true
	c := newTestClient(t, server.URL, nil)

	_, err := c.Login(context.Background(), "u@example.com", "wrongpassword")

	require.Error(t, err)
	sess := c.Session()
	assert.False(t, sess.IsAuthenticated)
	assert.False(t, sess.IsLoading)
	assert.Equal(t, "invalid credentials", sess.Error)
}

func TestLoginValidationSkipsNetwork(t *testing.T) {
	svc, server := newFakeService(t)
	c := newTestClient(t, server.URL, nil)

	t.Run("bad email", func(t *testing.T) {
		_, err := c.Login(context.Background(), "not-an-email", "hunter22secret")
		require.Error(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := c.Login(context.Background(), "u@example.com", "short")
		require.Error(t, err)
	})

	assert.EqualValues(t, 0, atomic.LoadInt64(&svc.loginHits))
}

func TestVerify(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	out, err := c.Verify(context.Background())

	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.verifyHits))
}

func TestProactiveRefreshBeforeExpiry(t *testing.T) {
	svc, server := newFakeService(t)
	// Initial token expires inside the 5-minute refresh buffer.
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(2*time.Minute)))
	svc.refreshedTo = mintToken(t, "u-1", time.Now().Add(time.Hour))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	out, err := c.GenerateChapters(context.Background(), GenerateChaptersRequest{VideoID: "yt-1"})

	require.NoError(t, err)
	assert.Len(t, out.Chapters, 2)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.refreshHits), "near-expiry token must be refreshed before use")
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.generateHits))
	assert.Equal(t, svc.refreshedTo, c.Session().Token)
	assert.Equal(t, "refresh-2", c.Session().RefreshToken)
}

func TestAuthFailureRefreshesAndReplaysOnce(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	svc.refreshedTo = mintToken(t, "u-1", time.Now().Add(2*time.Hour))
	svc.generateRejectFirst = true
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	out, err := c.GenerateChapters(context.Background(), GenerateChaptersRequest{VideoID: "yt-1"})

	require.NoError(t, err)
	assert.Len(t, out.Chapters, 2)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.refreshHits))
	assert.EqualValues(t, 2, atomic.LoadInt64(&svc.generateHits), "rejected request is replayed exactly once")
	assert.True(t, c.Session().IsAuthenticated)
}

func TestRepeatedAuthFailureForcesLogout(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	// The service revokes the account: refresh still hands out a token,
	// but every authed request keeps failing.
	svc.refreshedTo = mintToken(t, "u-1", time.Now().Add(time.Hour))
	svc.rejectAll = true

	_, err = c.GenerateChapters(context.Background(), GenerateChaptersRequest{VideoID: "yt-1"})

	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.refreshHits))
	assert.False(t, c.Session().IsAuthenticated, "second auth failure forces logout")
	assert.EqualValues(t, 0, c.Store().State(CreditsSlice))
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	svc.setAcceptedToken("revoked")
	svc.refuseRefresh = true

	_, err = c.GenerateChapters(context.Background(), GenerateChaptersRequest{VideoID: "yt-1"})

	require.Error(t, err)
	assert.False(t, c.Session().IsAuthenticated)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.refreshHits))
	assert.EqualValues(t, 0, atomic.LoadInt64(&svc.generateHits), "no replay when refresh fails")
}

func TestCreditsServedFromCache(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	first, err := c.Credits(context.Background())
	require.NoError(t, err)
	second, err := c.Credits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, first)
	assert.Equal(t, 42, second)
	assert.EqualValues(t, 1, atomic.LoadInt64(&svc.creditsHits), "second read must hit the cache")
	assert.Equal(t, 42, c.Store().State(CreditsSlice))
}

func TestGenerateChaptersUpdatesCreditsCache(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	_, err = c.GenerateChapters(context.Background(), GenerateChaptersRequest{VideoID: "yt-1"})
	require.NoError(t, err)

	credits, err := c.Credits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, credits)
	assert.EqualValues(t, 0, atomic.LoadInt64(&svc.creditsHits), "generate reply seeds the credits cache")
}

func TestGenerateChaptersValidation(t *testing.T) {
	svc, server := newFakeService(t)
	c := newTestClient(t, server.URL, nil)

	_, err := c.GenerateChapters(context.Background(), GenerateChaptersRequest{})

	require.Error(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt64(&svc.generateHits))
}

func TestCreateCheckout(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	t.Run("valid plan", func(t *testing.T) {
		out, err := c.CreateCheckout(context.Background(), "pro")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/c/123", out.CheckoutURL)
	})

	t.Run("unknown plan is rejected locally", func(t *testing.T) {
		before := atomic.LoadInt64(&svc.checkoutHits)
		_, err := c.CreateCheckout(context.Background(), "platinum")
		require.Error(t, err)
		assert.Equal(t, before, atomic.LoadInt64(&svc.checkoutHits))
	})
}

func TestLogoutClearsPersistedState(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	st := storage.NewMemoryStore()
	c := newTestClient(t, server.URL, st)
	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)

	c.Logout(context.Background())

	assert.False(t, c.Session().IsAuthenticated)

	restored, err := newTestClient(t, server.URL, st).Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored.IsAuthenticated)
}

func TestStoreSubscribersObserveSessionChanges(t *testing.T) {
	svc, server := newFakeService(t)
	svc.setAcceptedToken(mintToken(t, "u-1", time.Now().Add(time.Hour)))
	c := newTestClient(t, server.URL, nil)

	var transitions []bool
	c.Store().Subscribe(func(slice string, state any) {
		if slice == session.Slice {
			transitions = append(transitions, state.(*session.Session).IsAuthenticated)
		}
	})

	_, err := c.Login(context.Background(), "u@example.com", "hunter22secret")
	require.NoError(t, err)
	c.Logout(context.Background())

	// loginStarted (false), loginSucceeded (true), loggedOut (false)
	assert.Equal(t, []bool{false, true, false}, transitions)
}
