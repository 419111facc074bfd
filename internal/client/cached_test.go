package client

import (
	"context"
	"testing"
)

func TestCached_ReadsAreMemoised(t *testing.T) {
	t.Parallel()

	c, counter, _ := newTestClient(t, "admin@gymii.ai")
	cached := NewCached(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.KPI(ctx); err != nil {
			t.Fatalf("KPI() error = %v", err)
		}
	}
	if n := counter.n.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	if !cached.has(KeyKPI) {
		t.Error("kpi should be cached")
	}
}

func TestCached_CommentMutationsInvalidate(t *testing.T) {
	t.Parallel()

	c, counter, _ := newTestClient(t, "admin@gymii.ai")
	cached := NewCached(c)
	ctx := context.Background()

	if _, err := cached.Comments(ctx, "u-paying"); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Comments(ctx, "u-free"); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.User(ctx, "u-paying"); err != nil {
		t.Fatal(err)
	}

	created, err := cached.CreateComment(ctx, "u-paying", "first call", nil)
	if err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if cached.has(KeyComments("u-paying")) {
		t.Error("comments/u-paying should be dropped after create")
	}
	if !cached.has(KeyComments("u-free")) || !cached.has(KeyUser("u-paying")) {
		t.Error("unrelated entries should survive")
	}

	list, err := cached.Comments(ctx, "u-paying")
	if err != nil || len(list) != 1 {
		t.Fatalf("Comments() = %v, %v", list, err)
	}

	text := "second call"
	if _, err := cached.UpdateComment(ctx, "u-paying", created.ID, CommentUpdate{Text: &text}); err != nil {
		t.Fatal(err)
	}
	if cached.has(KeyComments("u-paying")) {
		t.Error("comments/u-paying should be dropped after update")
	}

	if _, err := cached.Comments(ctx, "u-paying"); err != nil {
		t.Fatal(err)
	}
	if err := cached.DeleteComment(ctx, "u-paying", created.ID); err != nil {
		t.Fatal(err)
	}
	if cached.has(KeyComments("u-paying")) {
		t.Error("comments/u-paying should be dropped after delete")
	}

	before := counter.n.Load()
	if _, err := cached.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if cached.has(KeyComments("u-free")) || cached.has(KeyUser("u-paying")) {
		t.Error("refresh should empty the cache")
	}
	if counter.n.Load() != before+1 {
		t.Errorf("refresh made %d requests", counter.n.Load()-before)
	}
}

func TestCached_InvalidatePrefix(t *testing.T) {
	t.Parallel()

	cached := NewCached(nil)
	cached.entries["comments/a"] = 1
	cached.entries["comments/ab"] = 1
	cached.entries["commentsx"] = 1
	cached.entries["kpi"] = 1

	cached.Invalidate("comments")
	if cached.has("comments/a") || cached.has("comments/ab") {
		t.Error("children of comments should be dropped")
	}
	if !cached.has("commentsx") || !cached.has("kpi") {
		t.Error("siblings should survive")
	}

	cached.Invalidate(KeyComments("a"))
	cached.InvalidateAll()
	if cached.has("kpi") {
		t.Error("InvalidateAll should empty the cache")
	}
}
