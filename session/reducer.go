package session

import "github.com/clipnotes/go-clipnotes/store"

// Slice is the state-store slice holding the session.
const Slice = "session"

// Action types dispatched against the session slice.
const (
	ActionLoginStarted   = "session/loginStarted"
	ActionLoginSucceeded = "session/loginSucceeded"
	ActionLoginFailed    = "session/loginFailed"
	ActionTokenRefreshed = "session/tokenRefreshed"
	ActionLoggedOut      = "session/loggedOut"
)

// LoginResult is the payload of ActionLoginSucceeded.
type LoginResult struct {
	User         *User
	Token        string
	RefreshToken string
}

// TokenPair is the payload of ActionTokenRefreshed.
type TokenPair struct {
	Token        string
	RefreshToken string
}

// Reducer computes the next session state. Register it on a store with
// Empty() as the initial state.
func Reducer(state any, action store.Action) any {
	current, _ := state.(*Session)
	next := current.clone()

	switch action.Type {
	case ActionLoginStarted:
		next.IsLoading = true
		next.Error = ""

	case ActionLoginSucceeded:
		result, ok := action.Payload.(LoginResult)
		if !ok {
			return current
		}
		next = &Session{
			IsAuthenticated: true,
			User:            result.User,
			Token:           result.Token,
			RefreshToken:    result.RefreshToken,
		}

	case ActionLoginFailed:
		msg, _ := action.Payload.(string)
		next = &Session{Error: msg}

	case ActionTokenRefreshed:
		pair, ok := action.Payload.(TokenPair)
		if !ok || !next.IsAuthenticated {
			return current
		}
		next.Token = pair.Token
		if pair.RefreshToken != "" {
			next.RefreshToken = pair.RefreshToken
		}

	case ActionLoggedOut:
		next = Empty()

	default:
		return current
	}

	return next
}
