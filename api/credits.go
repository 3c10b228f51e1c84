package api

import "github.com/clipnotes/go-clipnotes/store"

// CreditsSlice is the state-store slice holding the credits count.
const CreditsSlice = "credits"

// ActionCreditsUpdated replaces the credits count.
const ActionCreditsUpdated = "credits/updated"

// CreditsReducer tracks the remaining credits count.
func CreditsReducer(state any, action store.Action) any {
	if action.Type == ActionCreditsUpdated {
		if credits, ok := action.Payload.(int); ok {
			return credits
		}
	}
	return state
}
