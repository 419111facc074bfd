package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/cache"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/repository"
)

type output struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Created   bool      `json:"created"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("MAIN_DB_CONNECTION_STRING"), "main PostgreSQL connection string")
		redisURL    = flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL; when set, the cached admin row is evicted")
		secret      = flag.String("secret", os.Getenv("SUPABASE_JWT_SECRET"), "JWT signing secret")
		audience    = flag.String("audience", auth.DefaultAudience, "JWT audience")
		email       = flag.String("email", "", "admin email; must also be listed in ADMIN_EMAILS")
		username    = flag.String("username", "", "username for a new user row (default: email local part)")
		ttl         = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "MAIN_DB_CONNECTION_STRING is required")
		os.Exit(1)
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "SUPABASE_JWT_SECRET is required")
		os.Exit(1)
	}
	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" || !strings.Contains(addr, "@") {
		fmt.Fprintln(os.Stderr, "a valid -email is required")
		os.Exit(1)
	}
	if *username == "" {
		*username, _, _ = strings.Cut(addr, "@")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.WithName("main"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	admin, created, err := ensureAdmin(ctx, repo, *username, addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if *redisURL != "" {
		if err := evictCachedAdmin(ctx, *redisURL, addr); err != nil {
			fmt.Fprintln(os.Stderr, "warning: evict cached admin:", err)
		}
	}

	token, err := auth.NewVerifier(*secret, *audience, []string{addr}).Issue("", addr, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}

	out := output{
		UserID:    admin.ID,
		Email:     admin.Email,
		Created:   created,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(*ttl),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAdmin returns the user row for email, creating it when missing.
func ensureAdmin(ctx context.Context, repo *repository.Repository, username, email string) (*model.AdminUser, bool, error) {
	existing, err := repo.GetAdminUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrAdminUserNotFound) {
		return nil, false, err
	}

	u := &model.AdminUser{Username: username, Email: email}
	if err := repo.CreateAdminUser(ctx, u); err != nil {
		return nil, false, fmt.Errorf("create admin user: %w", err)
	}
	return u, true, nil
}

// evictCachedAdmin drops the API's cached row for email so the next comment
// write resolves the seeded row.
func evictCachedAdmin(ctx context.Context, redisURL, email string) error {
	c, err := cache.New(ctx, redisURL)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.DeleteAdminUser(ctx, email)
}
