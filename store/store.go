// Package store implements a minimal reducer-based state store. State is
// partitioned into named slices; dispatching an action runs the slice's
// reducer and broadcasts the new state to every subscriber synchronously.
package store

import (
	"fmt"
	"sync"

	"github.com/clipnotes/go-clipnotes/logger"
)

// Action describes a state transition request.
type Action struct {
	Type    string
	Payload any
}

// Reducer computes the next state of a slice from the current state and an
// action. Reducers must be pure: no I/O, no mutation of the previous state.
type Reducer func(state any, action Action) any

// Listener is invoked synchronously after every dispatch with the slice
// name and its new state.
type Listener func(slice string, state any)

// Store holds the application state and its reducers.
type Store struct {
	mu        sync.Mutex
	state     map[string]any
	reducers  map[string]Reducer
	listeners map[int]Listener
	order     []int
	nextID    int
	logger    logger.Logger
}

// New creates an empty store.
func New(log logger.Logger) *Store {
	return &Store{
		state:     make(map[string]any),
		reducers:  make(map[string]Reducer),
		listeners: make(map[int]Listener),
		logger:    log,
	}
}

// RegisterReducer binds a reducer to a slice and sets its initial state.
func (s *Store) RegisterReducer(slice string, initial any, reducer Reducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducers[slice] = reducer
	s.state[slice] = initial
}

// Subscribe registers a listener and returns an unsubscribe function.
// Listeners are notified in subscription order.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Dispatch runs the slice's reducer and notifies all subscribers with the
// new state before returning. Dispatching to a slice without a reducer is
// a programming error and fails loudly.
func (s *Store) Dispatch(slice string, action Action) error {
	s.mu.Lock()
	reducer, ok := s.reducers[slice]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("store: no reducer registered for slice %q", slice)
	}

	next := reducer(s.state[slice], action)
	s.state[slice] = next

	// Snapshot listeners so a subscriber can dispatch or unsubscribe
	// without deadlocking.
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	s.logger.Debug().Str("slice", slice).Str("action", action.Type).Msg("state dispatched")

	for _, listener := range listeners {
		listener(slice, next)
	}
	return nil
}

// State returns the current state of a slice.
func (s *Store) State(slice string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[slice]
}
