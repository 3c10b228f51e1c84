package token

import "errors"

// Sentinel errors for token lifecycle operations.
// Use errors.Is() to check for these specific conditions.
var (
	// ErrNoToken is returned when an operation requires a token and none
	// is held by the manager.
	ErrNoToken = errors.New("token: no token available")

	// ErrMalformedToken is returned when a bearer token cannot be decoded.
	ErrMalformedToken = errors.New("token: malformed token")

	// ErrRefreshThrottled is returned when a refresh is required but the
	// throttle window has not elapsed since the previous attempt.
	ErrRefreshThrottled = errors.New("token: refresh throttled")
)
