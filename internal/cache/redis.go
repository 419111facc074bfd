// Package cache is the Redis side of the dashboard API: persisted
// snapshots, the refresh lock, rate limits and the admin identity cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps one Redis client. All methods are safe for concurrent use.
type Cache struct {
	client *redis.Client
}

// New dials redisURL and pings it. Reads get a longer timeout than the
// client default since the users snapshot is one large value.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ReadTimeout = 10 * time.Second

	c := NewWithClient(redis.NewClient(opt))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// NewWithClient wraps a client the caller configured. Close closes it.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client for health checks and test cleanup.
func (c *Cache) Client() *redis.Client {
	return c.client
}
