// Package cache wraps Redis for short-lived keys.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a key/value cache backed by Redis.
type Redis struct {
	client *redis.Client
}

// New creates a Redis cache. The connection is established lazily.
func New(config Config) (*Redis, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})}, nil
}

// Ping checks if Redis is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the value for key. A missing key yields ok=false.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with a TTL.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// SetNX stores key only if absent and reports whether it was stored.
func (c *Redis) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx %s: %w", key, err)
	}
	return ok, nil
}

// Del removes key.
func (c *Redis) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}
