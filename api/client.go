package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/clipnotes/go-clipnotes/config"
	"github.com/clipnotes/go-clipnotes/httpclient"
	"github.com/clipnotes/go-clipnotes/logger"
	"github.com/clipnotes/go-clipnotes/session"
	"github.com/clipnotes/go-clipnotes/storage"
	"github.com/clipnotes/go-clipnotes/store"
	"github.com/clipnotes/go-clipnotes/token"
	"github.com/clipnotes/go-clipnotes/validation"
)

// Service endpoint paths, relative to the configured base URL.
const (
	pathLogin    = "/auth/login"
	pathRefresh  = "/auth/refresh"
	pathVerify   = "/auth/verify"
	pathGenerate = "/chapters/generate"
	pathCredits  = "/credits"
	pathCheckout = "/payments/checkout"
)

// Client is the ClipNotes service facade. It owns the state store, the
// token manager and the persisted session, and exposes one method per
// service operation.
type Client struct {
	http     httpclient.Client
	tokens   *token.Manager
	repo     *session.Repository
	state    *store.Store
	validate *validation.Validator
	logger   logger.Logger

	baseURL string
	cfg     *config.Config
}

// New wires a client from configuration. The storage backend holds the
// persisted session blob and the cached credits count.
func New(cfg *config.Config, log logger.Logger, st storage.Store) *Client {
	c := &Client{
		validate: validation.New(),
		logger:   log,
		baseURL:  strings.TrimRight(cfg.API.BaseURL, "/"),
		cfg:      cfg,
	}

	c.state = store.New(log)
	c.state.RegisterReducer(session.Slice, session.Empty(), session.Reducer)
	c.state.RegisterReducer(CreditsSlice, 0, CreditsReducer)

	c.repo = session.NewRepository(st)

	c.tokens = token.NewManager(log, c.refreshAccessToken,
		token.WithRefreshBuffer(cfg.Auth.RefreshBuffer),
		token.WithRefreshInterval(cfg.Auth.RefreshInterval),
	)

	c.http = httpclient.NewBuilder(log).
		WithTimeout(cfg.API.Timeout).
		WithRetries(cfg.API.MaxAttempts, cfg.API.BackoffBase).
		WithTimeoutGrowth(cfg.API.TimeoutGrowth).
		WithTokenSource(c.tokens).
		Build()

	return c
}

// Store exposes the state store so callers can subscribe to state changes.
func (c *Client) Store() *store.Store {
	return c.state
}

// Session returns the current session state.
func (c *Client) Session() *session.Session {
	sess, _ := c.state.State(session.Slice).(*session.Session)
	return sess
}

// Restore loads the persisted session blob, if any, and rehydrates the
// token manager and the state store from it. Call once at startup.
func (c *Client) Restore(ctx context.Context) (*session.Session, error) {
	sess, err := c.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAuthenticated || sess.Token == "" {
		return c.Session(), nil
	}

	if err := c.tokens.Set(sess.Token); err != nil {
		// Corrupted blob: drop it rather than carrying a broken session.
		c.logger.Warn().Err(err).Msg("persisted session token unreadable, clearing session")
		_ = c.repo.Clear(ctx)
		return c.Session(), nil
	}

	c.dispatch(session.Slice, store.Action{
		Type: session.ActionLoginSucceeded,
		Payload: session.LoginResult{
			User:         sess.User,
			Token:        sess.Token,
			RefreshToken: sess.RefreshToken,
		},
	})
	return c.Session(), nil
}

// Login authenticates with email and password, stores the returned token
// pair, and persists the session.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	reqBody := LoginRequest{Email: email, Password: password}
	if err := c.validate.Struct(reqBody); err != nil {
		return nil, err
	}

	c.dispatch(session.Slice, store.Action{Type: session.ActionLoginStarted})

	var out LoginResponse
	if err := c.doJSON(ctx, nethttp.MethodPost, pathLogin, reqBody, &out, false); err != nil {
		c.dispatch(session.Slice, store.Action{
			Type:    session.ActionLoginFailed,
			Payload: errorMessage(err),
		})
		return nil, err
	}

	if err := c.tokens.Set(out.Token); err != nil {
		c.dispatch(session.Slice, store.Action{
			Type:    session.ActionLoginFailed,
			Payload: "malformed token from server",
		})
		return nil, err
	}

	user := out.User
	c.dispatch(session.Slice, store.Action{
		Type: session.ActionLoginSucceeded,
		Payload: session.LoginResult{
			User:         &user,
			Token:        out.Token,
			RefreshToken: out.RefreshToken,
		},
	})
	c.persistSession(ctx)

	c.logger.Info().Str("user_id", user.ID).Msg("logged in")
	return c.Session(), nil
}

// Logout clears the token, the persisted state, and the session slice.
func (c *Client) Logout(ctx context.Context) {
	c.forceLogout(ctx)
	c.logger.Info().Msg("logged out")
}

// Verify asks the service whether the current token is valid.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.doJSON(ctx, nethttp.MethodGet, pathVerify, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateChapters requests chapter summaries for a video and updates the
// cached credits count from the reply.
func (c *Client) GenerateChapters(ctx context.Context, req GenerateChaptersRequest) (*GenerateChaptersResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, err
	}

	var out GenerateChaptersResponse
	if err := c.doJSON(ctx, nethttp.MethodPost, pathGenerate, req, &out, true); err != nil {
		return nil, err
	}

	c.updateCredits(ctx, out.CreditsRemaining)
	return &out, nil
}

// Credits returns the remaining credits, served from the local cache when
// it is warm and from the service otherwise.
func (c *Client) Credits(ctx context.Context) (int, error) {
	if cached, err := c.repo.LoadCredits(ctx); err == nil {
		c.dispatch(CreditsSlice, store.Action{Type: ActionCreditsUpdated, Payload: cached})
		return cached, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn().Err(err).Msg("credits cache unavailable")
	}

	var out CreditsResponse
	if err := c.doJSON(ctx, nethttp.MethodGet, pathCredits, nil, &out, true); err != nil {
		return 0, err
	}

	c.updateCredits(ctx, out.Credits)
	return out.Credits, nil
}

// CreateCheckout starts a hosted payment flow for the given plan.
func (c *Client) CreateCheckout(ctx context.Context, plan string) (*CheckoutResponse, error) {
	reqBody := CheckoutRequest{Plan: plan}
	if err := c.validate.Struct(reqBody); err != nil {
		return nil, err
	}

	var out CheckoutResponse
	if err := c.doJSON(ctx, nethttp.MethodPost, pathCheckout, reqBody, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// refreshAccessToken exchanges the session's refresh token for a new access
// token. It is the token manager's RefreshFunc and bypasses doJSON so a
// failing refresh can never recurse into another refresh.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	sess := c.Session()
	if sess == nil || sess.RefreshToken == "" {
		return "", token.ErrNoToken
	}

	body, err := json.Marshal(RefreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		return "", err
	}

	resp, err := c.http.Post(ctx, &httpclient.Request{
		URL:  c.baseURL + pathRefresh,
		Body: body,
	})
	if err != nil {
		return "", err
	}

	var out RefreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}

	c.dispatch(session.Slice, store.Action{
		Type:    session.ActionTokenRefreshed,
		Payload: session.TokenPair{Token: out.Token, RefreshToken: out.RefreshToken},
	})
	c.persistSession(ctx)

	return out.Token, nil
}

// doJSON issues a request and decodes the JSON reply. Authenticated
// requests rejected with an auth failure get one refresh-then-replay; a
// second auth failure forces logout.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, requiresAuth bool) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	req := &httpclient.Request{
		URL:          c.baseURL + path,
		Body:         body,
		RequiresAuth: requiresAuth,
	}

	resp, err := c.http.Do(ctx, method, req)
	if err != nil {
		if requiresAuth && httpclient.Classify(err) == httpclient.ClassAuth {
			return c.replayAfterRefresh(ctx, method, req, out, err)
		}
		return err
	}

	return decodeJSON(resp, out)
}

// replayAfterRefresh runs the auth recovery flow: force a token refresh
// and replay the request exactly once. Any further auth failure, or a
// failed refresh, forces logout and surfaces the original error.
func (c *Client) replayAfterRefresh(ctx context.Context, method string, req *httpclient.Request, out any, cause error) error {
	if _, err := c.tokens.ForceRefresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("token refresh after auth failure did not succeed, logging out")
		c.forceLogout(ctx)
		return cause
	}

	resp, err := c.http.Do(ctx, method, req)
	if err != nil {
		if httpclient.Classify(err) == httpclient.ClassAuth {
			c.logger.Warn().Msg("request still unauthorized after refresh, logging out")
			c.forceLogout(ctx)
		}
		return err
	}

	return decodeJSON(resp, out)
}

// updateCredits refreshes the credits slice and its cache entry.
func (c *Client) updateCredits(ctx context.Context, credits int) {
	c.dispatch(CreditsSlice, store.Action{Type: ActionCreditsUpdated, Payload: credits})
	if err := c.repo.SaveCredits(ctx, credits, c.cfg.Auth.CreditsTTL); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache credits")
	}
}

// persistSession writes the current session blob. Persistence failures are
// logged, not fatal: the in-memory session keeps working.
func (c *Client) persistSession(ctx context.Context) {
	if err := c.repo.Save(ctx, c.Session()); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist session")
	}
}

// forceLogout clears every trace of the session.
func (c *Client) forceLogout(ctx context.Context) {
	c.tokens.Clear()
	if err := c.repo.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
	if err := c.repo.ClearCredits(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear cached credits")
	}
	c.dispatch(session.Slice, store.Action{Type: session.ActionLoggedOut})
	c.dispatch(CreditsSlice, store.Action{Type: ActionCreditsUpdated, Payload: 0})
}

// dispatch sends an action to the store. Reducers are registered in New,
// so a failure here is a programming error worth logging loudly.
func (c *Client) dispatch(slice string, action store.Action) {
	if err := c.state.Dispatch(slice, action); err != nil {
		c.logger.Error().Err(err).Str("slice", slice).Msg("state dispatch failed")
	}
}

// decodeJSON unmarshals a response body into out, if requested.
func decodeJSON(resp *httpclient.Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the service error message from a failed request,
// falling back to the error's own text.
func errorMessage(err error) string {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		var body errorBody
		if jsonErr := json.Unmarshal(statusErr.Body(), &body); jsonErr == nil && body.Error != "" {
			return body.Error
		}
	}
	return err.Error()
}
