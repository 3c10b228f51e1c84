// Package token manages the client-side lifecycle of the bearer token:
// decoding its claims, tracking expiry, and coordinating refresh so that
// at most one refresh is ever in flight.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the client cares about.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Token is a decoded bearer token.
type Token struct {
	Raw    string
	Claims Claims
}

// Decode parses a bearer token without verifying its signature. The client
// never validates tokens cryptographically; it only reads the expiry and
// identity claims to decide when to refresh. Verification is the server's
// job.
func Decode(raw string) (*Token, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, ErrMalformedToken
	}

	return &Token{Raw: raw, Claims: claims}, nil
}

// Subject returns the token subject claim.
func (t *Token) Subject() string {
	return t.Claims.Subject
}

// Email returns the token email claim.
func (t *Token) Email() string {
	return t.Claims.Email
}

// ExpiresAt returns the expiry time, or the zero time if the token has no
// exp claim.
func (t *Token) ExpiresAt() time.Time {
	if t.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return t.Claims.ExpiresAt.Time
}

// ExpiresWithin reports whether the token expires inside the given buffer
// measured from now. Tokens without an exp claim never trigger a refresh.
func (t *Token) ExpiresWithin(buffer time.Duration, now time.Time) bool {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !exp.After(now.Add(buffer))
}

// Expired reports whether the token is already past its expiry.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresWithin(0, now)
}
