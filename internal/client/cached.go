package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/retention"
)

// Cache keys. Comment mutations drop KeyComments(userID); Refresh drops everything.
const (
	KeyUsers   = "users"
	KeyKPI     = "kpi"
	KeyDAU     = "dau"
	KeyCohorts = "cohorts"
	KeyAdmins  = "admins"
)

// KeyComments is the cache key of a user's comment list.
func KeyComments(userID string) string { return "comments/" + userID }

// KeyUser is the cache key of one profile.
func KeyUser(userID string) string { return "user/" + userID }

// KeyRetention is the cache key of a retention period.
func KeyRetention(p retention.Period) string { return "retention/" + string(p) }

// KeySessions is the cache key of one page of a user's sessions.
func KeySessions(userID string, page int) string { return fmt.Sprintf("sessions/%s/%d", userID, page) }

// KeySearch is the cache key of one search page.
func KeySearch(q string, page, size int) string { return fmt.Sprintf("search/%s/%d/%d", q, page, size) }

// Cached memoises reads by resource and drops entries on mutation.
type Cached struct {
	api *Client

	mu      sync.Mutex
	entries map[string]any
}

// NewCached wraps c.
func NewCached(c *Client) *Cached {
	return &Cached{api: c, entries: make(map[string]any)}
}

func fetch[T any](ctx context.Context, c *Cached, key string, load func(ctx context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return v.(T), nil
	}
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops key and every key below it ("comments" drops "comments/u-1").
func (c *Cached) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k == key || strings.HasPrefix(k, key+"/") {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cached) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *Cached) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Client returns the uncached client.
func (c *Cached) Client() *Client {
	return c.api
}

func (c *Cached) Users(ctx context.Context) (map[string]model.User, error) {
	return fetch(ctx, c, KeyUsers, c.api.Users)
}

func (c *Cached) KPI(ctx context.Context) (*dto.KPIResponse, error) {
	return fetch(ctx, c, KeyKPI, c.api.KPI)
}

func (c *Cached) DAU(ctx context.Context) ([]model.DAU, error) {
	return fetch(ctx, c, KeyDAU, c.api.DAU)
}

func (c *Cached) Cohorts(ctx context.Context) (*retention.CohortReport, error) {
	return fetch(ctx, c, KeyCohorts, c.api.Cohorts)
}

func (c *Cached) AdminUsers(ctx context.Context) ([]model.AdminUser, error) {
	return fetch(ctx, c, KeyAdmins, c.api.AdminUsers)
}

func (c *Cached) Retention(ctx context.Context, p retention.Period) ([]model.RetentionDay, error) {
	return fetch(ctx, c, KeyRetention(p), func(ctx context.Context) ([]model.RetentionDay, error) {
		return c.api.Retention(ctx, p)
	})
}

func (c *Cached) SearchUsers(ctx context.Context, q string, page, size int) (*paging.Page[model.User], error) {
	return fetch(ctx, c, KeySearch(q, page, size), func(ctx context.Context) (*paging.Page[model.User], error) {
		return c.api.SearchUsers(ctx, q, page, size)
	})
}

func (c *Cached) User(ctx context.Context, userID string) (*model.User, error) {
	return fetch(ctx, c, KeyUser(userID), func(ctx context.Context) (*model.User, error) {
		return c.api.User(ctx, userID)
	})
}

func (c *Cached) Sessions(ctx context.Context, userID string, page int) (*paging.Page[model.ActivitySession], error) {
	return fetch(ctx, c, KeySessions(userID, page), func(ctx context.Context) (*paging.Page[model.ActivitySession], error) {
		return c.api.Sessions(ctx, userID, page)
	})
}

func (c *Cached) Comments(ctx context.Context, userID string) ([]model.AdminComment, error) {
	return fetch(ctx, c, KeyComments(userID), func(ctx context.Context) ([]model.AdminComment, error) {
		return c.api.Comments(ctx, userID)
	})
}

// CreateComment adds a comment and drops the user's comment list.
func (c *Cached) CreateComment(ctx context.Context, userID, text string, mood *string) (*model.AdminComment, error) {
	out, err := c.api.CreateComment(ctx, userID, text, mood)
	if err != nil {
		return nil, err
	}
	c.Invalidate(KeyComments(userID))
	return out, nil
}

// UpdateComment edits a comment of userID and drops that user's comment list.
func (c *Cached) UpdateComment(ctx context.Context, userID string, commentID int64, upd CommentUpdate) (*model.AdminComment, error) {
	out, err := c.api.UpdateComment(ctx, commentID, upd)
	if err != nil {
		return nil, err
	}
	c.Invalidate(KeyComments(userID))
	return out, nil
}

// DeleteComment removes a comment of userID and drops that user's comment list.
func (c *Cached) DeleteComment(ctx context.Context, userID string, commentID int64) error {
	if err := c.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	c.Invalidate(KeyComments(userID))
	return nil
}

// Refresh re-runs the server queries and empties the cache.
func (c *Cached) Refresh(ctx context.Context) (*dto.RefreshResponse, error) {
	out, err := c.api.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.InvalidateAll()
	return out, nil
}
