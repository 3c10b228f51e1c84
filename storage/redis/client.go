// Package redis implements storage.Store backed by a Redis server.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipnotes/go-clipnotes/storage"
)

// Client implements the storage.Store interface using Redis as the backend.
type Client struct {
	client *redis.Client
	config *Config
	closed atomic.Bool
}

var _ storage.Store = (*Client)(nil)

// NewClient creates a new Redis store client. It validates the
// configuration and verifies connectivity before returning.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storage.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// Get retrieves a value from the store.
// Returns storage.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, storage.ErrClosed
	}

	result, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.NewOperationError("get", key, err)
	}

	return result, nil
}

// Set stores a value with the specified TTL.
// TTL of 0 means no expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return storage.ErrClosed
	}
	if ttl < 0 {
		return storage.ErrInvalidTTL
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return storage.NewOperationError("set", key, err)
	}

	return nil
}

// Delete removes a key from the store.
// Does not return an error if the key doesn't exist.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return storage.ErrClosed
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return storage.NewOperationError("delete", key, err)
	}

	return nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return storage.ErrClosed
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return storage.NewConnectionError("ping", c.config.Address(), err)
	}

	return nil
}

// Close closes the Redis client. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return storage.ErrClosed
	}
	return c.client.Close()
}
