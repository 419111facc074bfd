package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotPrefix = "snapshot:"
	refreshLockKey = "snapshot:lock"
)

// SnapshotEntry is one persisted query result.
type SnapshotEntry struct {
	Name        string          `json:"name"`
	RunID       string          `json:"run_id"`
	RefreshedAt time.Time       `json:"refreshed_at"`
	Rows        int             `json:"rows"`
	Data        json.RawMessage `json:"data"`
}

func snapshotKey(name string) string {
	return snapshotPrefix + name
}

// GetSnapshot returns the latest persisted snapshot for name.
// Returns nil, nil on a miss or a corrupted entry.
func (c *Cache) GetSnapshot(ctx context.Context, name string) (*SnapshotEntry, error) {
	data, err := c.client.Get(ctx, snapshotKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", name, err)
	}

	var entry SnapshotEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil //nolint:nilerr
	}
	return &entry, nil
}

// SetSnapshot stores entry without expiry; a newer run overwrites it.
func (c *Cache) SetSnapshot(ctx context.Context, entry *SnapshotEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", entry.Name, err)
	}
	if err := c.client.Set(ctx, snapshotKey(entry.Name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot %s: %w", entry.Name, err)
	}
	return nil
}

var releaseLockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// AcquireRefreshLock takes the cross-instance refresh lock for runID.
func (c *Cache) AcquireRefreshLock(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, refreshLockKey, runID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	return ok, nil
}

// ReleaseRefreshLock drops the lock only if runID still holds it.
func (c *Cache) ReleaseRefreshLock(ctx context.Context, runID string) error {
	return releaseLockScript.Run(ctx, c.client, []string{refreshLockKey}, runID).Err()
}
