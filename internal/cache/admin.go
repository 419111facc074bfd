package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gymii/dashboard/internal/model"
)

const (
	// adminCachePrefix is the Redis key prefix for resolved admin rows.
	adminCachePrefix = "admin:"
	// adminCacheTTL bounds how long a renamed or removed admin row is served.
	adminCacheTTL = 5 * time.Minute
)

func adminKey(email string) string {
	return adminCachePrefix + hashKey(strings.ToLower(email))
}

// GetAdminUser returns the cached admin row for email.
// Returns nil if not found (cache miss).
func (c *Cache) GetAdminUser(ctx context.Context, email string) (*model.AdminUser, error) {
	data, err := c.client.Get(ctx, adminKey(email)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var u model.AdminUser
	if err := json.Unmarshal(data, &u); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}
	return &u, nil
}

// SetAdminUser caches an admin row under its email.
func (c *Cache) SetAdminUser(ctx context.Context, u *model.AdminUser) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal admin user: %w", err)
	}
	return c.client.Set(ctx, adminKey(u.Email), data, adminCacheTTL).Err()
}

// DeleteAdminUser drops the cached row for email.
func (c *Cache) DeleteAdminUser(ctx context.Context, email string) error {
	return c.client.Del(ctx, adminKey(email)).Err()
}
