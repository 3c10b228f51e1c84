package api

import "github.com/clipnotes/go-clipnotes/session"

// LoginRequest is the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse is the login endpoint reply.
type LoginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         session.User `json:"user"`
}

// RefreshRequest is the payload for the token refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshResponse is the refresh endpoint reply. RefreshToken is empty
// when the server does not rotate refresh tokens.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// VerifyResponse is the token verification reply.
type VerifyResponse struct {
	Valid bool          `json:"valid"`
	User  *session.User `json:"user,omitempty"`
}

// GenerateChaptersRequest asks the service to summarize a video into
// chapters.
type GenerateChaptersRequest struct {
	VideoID  string `json:"videoId" validate:"required"`
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// Chapter is one generated chapter.
type Chapter struct {
	// Start is the chapter start offset in seconds.
	Start   float64 `json:"start"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
}

// GenerateChaptersResponse is the chapter generation reply.
type GenerateChaptersResponse struct {
	Chapters         []Chapter `json:"chapters"`
	CreditsRemaining int       `json:"creditsRemaining"`
}

// CreditsResponse is the credits endpoint reply.
type CreditsResponse struct {
	Credits int `json:"credits"`
}

// CheckoutRequest starts a payment flow for a plan.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=starter pro"`
}

// CheckoutResponse carries the hosted checkout URL.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// errorBody is the error envelope the service uses for non-2xx replies.
type errorBody struct {
	Error string `json:"error"`
}
