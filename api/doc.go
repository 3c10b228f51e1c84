// Package api is the ClipNotes service facade. It binds the HTTP request
// layer, the token manager, the state store, and the persisted session
// into one client exposing the service operations: login, logout, token
// verification, chapter generation, credits, and checkout.
//
// Auth recovery
//   - Requests rejected with an auth failure trigger one token refresh
//     followed by a single replay of the request.
//   - A failed refresh, or a second auth failure, forces logout: the
//     token, the persisted session, and the cached credits are cleared
//     and subscribers observe the signed-out state.
//
// State
//   - Session and credits live in a reducer-based store; subscribe via
//     Client.Store() to re-render on changes.
//   - The session blob and the credits count are the only persisted keys.
package api
