// Package storage provides the persisted client state. The SDK keeps two
// logical entries: the serialized session blob and the cached credits
// count. Implementations must be safe for concurrent use.
package storage

import (
	"context"
	"time"
)

// Well-known keys persisted by the SDK.
const (
	// SessionKey holds the serialized session blob.
	SessionKey = "clipnotes:session"

	// CreditsKey holds the cached credits count.
	CreditsKey = "clipnotes:credits"
)

// Store defines the key-value contract for persisted client state.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL.
	// If ttl is 0, the value is stored without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Health checks that the backing store is reachable.
	Health(ctx context.Context) error

	// Close releases resources. The store must not be used afterwards.
	Close() error
}
