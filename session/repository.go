package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/clipnotes/go-clipnotes/storage"
)

// DefaultCreditsTTL bounds how long a cached credits count is trusted.
const DefaultCreditsTTL = 5 * time.Minute

// Repository persists the session blob and the cached credits count, the
// two pieces of client state that survive restarts.
type Repository struct {
	store storage.Store
}

// NewRepository creates a repository over the given store.
func NewRepository(s storage.Store) *Repository {
	return &Repository{store: s}
}

// Save serializes the session under the session key.
func (r *Repository) Save(ctx context.Context, sess *Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, storage.SessionKey, blob, 0)
}

// Load restores the persisted session. A missing blob returns the
// signed-out session, not an error.
func (r *Repository) Load(ctx context.Context) (*Session, error) {
	blob, err := r.store.Get(ctx, storage.SessionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Empty(), nil
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Clear removes the persisted session.
func (r *Repository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, storage.SessionKey)
}

// SaveCredits caches the credits count with a TTL.
func (r *Repository) SaveCredits(ctx context.Context, credits int, ttl time.Duration) error {
	return r.store.Set(ctx, storage.CreditsKey, []byte(strconv.Itoa(credits)), ttl)
}

// LoadCredits returns the cached credits count.
// Returns storage.ErrNotFound when the cache is cold or expired.
func (r *Repository) LoadCredits(ctx context.Context) (int, error) {
	blob, err := r.store.Get(ctx, storage.CreditsKey)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(blob))
}

// ClearCredits removes the cached credits count.
func (r *Repository) ClearCredits(ctx context.Context) error {
	return r.store.Delete(ctx, storage.CreditsKey)
}
