// Package session defines the client session state, its reducer for the
// state store, and its persistence into storage.
package session

// User is the identity returned by the service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is the authentication state the rest of the SDK observes.
// Sessions are passed by reference and owned by the state store; there is
// no package-level current session.
type Session struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	User            *User  `json:"user,omitempty"`
	Token           string `json:"token,omitempty"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
}

// Empty returns the signed-out session state.
func Empty() *Session {
	return &Session{}
}

// clone returns a copy so reducers never mutate previous state.
func (s *Session) clone() *Session {
	if s == nil {
		return Empty()
	}
	next := *s
	if s.User != nil {
		user := *s.User
		next.User = &user
	}
	return &next
}
