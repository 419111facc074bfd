package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gymii/dashboard/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 550055

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// Migration names under migrations/.
const (
	MigrationAdmin               = "000001_admin"
	MigrationSubscriptionProfile = "000002_subscription_profile"
	MigrationAnalytics           = "000003_analytics"
)

// ResetSchema applies the down then up file of a migration.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool, migration string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	for _, suffix := range []string{".down.sql", ".up.sql"} {
		path := filepath.Join(root, "migrations", migration+suffix)
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// ResetAllSchemas resets every migration in order.
func ResetAllSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range []string{MigrationAdmin, MigrationSubscriptionProfile, MigrationAnalytics} {
		if err := ResetSchema(ctx, pool, m); err != nil {
			return err
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a paying subscription profile with sensible defaults.
func NewTestUser(t testing.TB, id string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	return &model.User{
		ID:                 id,
		FirstName:          "Test",
		Email:              id + "@example.com",
		Status:             model.StatusActive,
		AutoRenewEnabled:   true,
		AutoRenewProductID: "gymii.monthly",
		ProductID:          "gymii.monthly",
		ExpectedMMR:        "9.99",
		PromoCodesUsed:     []string{},
		OnboardingComplete: true,
		CreatedAt:          &now,
	}
}

// InsertTestUser writes u into user_subscription_profile.
func InsertTestUser(ctx context.Context, pool *pgxpool.Pool, u *model.User) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO user_subscription_profile
			(user_id, first_name, email, status, auto_renew_enabled, auto_renew_product_id,
			 product_id, expected_mmr, promo_codes_used, onboarding_complete, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.FirstName, u.Email, u.Status, u.AutoRenewEnabled, u.AutoRenewProductID,
		u.ProductID, u.ExpectedMMR, u.PromoCodesUsed, u.OnboardingComplete, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test user: %w", err)
	}
	return nil
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
