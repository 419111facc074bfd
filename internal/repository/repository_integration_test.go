//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/testutil"
)

func newTestRepository(t *testing.T, ctx context.Context) (*Repository, *metrics.InMemoryRecorder) {
	t.Helper()

	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	rec := metrics.NewInMemory()
	repo, err := New(ctx, dbURL, WithRecorder(rec), WithName("test"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetAllSchemas(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return repo, rec
}

func TestIntegrationRepository_SubscriptionProfiles(t *testing.T) {
	ctx := context.Background()
	repo, rec := newTestRepository(t, ctx)

	u := testutil.NewTestUser(t, testutil.UniqueID("user"))
	u.PromoCodesUsed = []string{"14-day-free"}
	if err := testutil.InsertTestUser(ctx, repo.Pool(), u); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Pool().Exec(ctx,
		`INSERT INTO user_subscription_profile (user_id, promo_codes_used) VALUES ('nulls', ARRAY['X', NULL])`); err != nil {
		t.Fatalf("insert null promo row: %v", err)
	}

	users, err := repo.ListSubscriptionProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}

	got, err := repo.GetSubscriptionProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != u.Email || !got.IsActive() {
		t.Errorf("got %+v", got)
	}
	if len(got.PromoCodesUsed) != 1 || got.PromoCodesUsed[0] != "14-day-free" {
		t.Errorf("PromoCodesUsed = %v", got.PromoCodesUsed)
	}

	nulls, err := repo.GetSubscriptionProfile(ctx, "nulls")
	if err != nil {
		t.Fatalf("get nulls: %v", err)
	}
	if len(nulls.PromoCodesUsed) != 0 {
		t.Errorf("PromoCodesUsed with NULL element = %v, want empty", nulls.PromoCodesUsed)
	}

	if _, err := repo.GetSubscriptionProfile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	snap := rec.Snapshot()
	if snap.DBQueries < 4 {
		t.Errorf("DBQueries = %d, want >= 4", snap.DBQueries)
	}
	if snap.DBErrors["test.get_subscription_profile/not_found"] != 1 {
		t.Errorf("DBErrors = %v", snap.DBErrors)
	}
}

func TestIntegrationRepository_CommentLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t, ctx)

	admin := &model.AdminUser{Username: "ops", Email: "Ops@Gymii.ai"}
	if err := repo.CreateAdminUser(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if err := repo.CreateAdminUser(ctx, &model.AdminUser{Username: "ops", Email: "x@y.z"}); !errors.Is(err, ErrAdminUserExists) {
		t.Fatalf("expected ErrAdminUserExists, got %v", err)
	}

	found, err := repo.GetAdminUserByEmail(ctx, "ops@gymii.ai")
	if err != nil {
		t.Fatalf("get admin by email: %v", err)
	}
	if found.ID != admin.ID {
		t.Fatalf("admin id = %d, want %d", found.ID, admin.ID)
	}
	if _, err := repo.GetAdminUserByEmail(ctx, "nobody@gymii.ai"); !errors.Is(err, ErrAdminUserNotFound) {
		t.Fatalf("expected ErrAdminUserNotFound, got %v", err)
	}

	mood := model.MoodHappy
	c := &model.AdminComment{UserID: "user-1", AuthorID: &admin.ID, Text: "called them", Mood: &mood}
	if err := repo.CreateComment(ctx, c); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if c.ID == 0 || c.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set: %+v", c)
	}

	list, err := repo.ListComments(ctx, "user-1")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(list) != 1 || list[0].Text != "called them" {
		t.Fatalf("list = %+v", list)
	}

	newText := "called them twice"
	updated, err := repo.UpdateComment(ctx, c.ID, CommentUpdate{Text: &newText})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Text != newText || updated.Mood == nil || *updated.Mood != model.MoodHappy {
		t.Errorf("partial update changed the wrong fields: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("expected updated_at to be set")
	}

	if _, err := repo.UpdateComment(ctx, c.ID+1000, CommentUpdate{Text: &newText}); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("expected ErrCommentNotFound, got %v", err)
	}

	if err := repo.DeleteComment(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteComment(ctx, c.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("second delete: expected ErrCommentNotFound, got %v", err)
	}
}

func TestIntegrationRepository_Analytics(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t, ctx)

	stmts := []string{
		`INSERT INTO dau_users (date, active_users) VALUES ('2025-01-02', 7), ('2025-01-01', 5)`,
		`INSERT INTO daily_retention_rates (date, day1_retention_rate, total_users) VALUES ('2025-01-01', 42.50, 10)`,
		`INSERT INTO cohort_retention_rates (cohort_date, cohort_size, day1_active_users) VALUES ('2025-01-01', 8, 2), ('2025-01-02', 0, 0)`,
		`INSERT INTO screen_durations_view (user_id, session_id, screen, screen_start_time, duration_seconds, session_start_time, visit_date)
		 VALUES ('u1', 's1', 'home', '2025-01-01T10:00:00Z', 12.5, '2025-01-01T10:00:00Z', '2025-01-01')`,
	}
	for _, s := range stmts {
		if _, err := repo.Pool().Exec(ctx, s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	dau, err := repo.ListDAU(ctx)
	if err != nil {
		t.Fatalf("dau: %v", err)
	}
	if len(dau) != 2 || dau[0].Date != "2025-01-01" || dau[1].ActiveUsers != 7 {
		t.Errorf("dau = %+v", dau)
	}

	days, err := repo.ListDailyRetention(ctx)
	if err != nil {
		t.Fatalf("retention: %v", err)
	}
	if len(days) != 1 || days[0].Day1RetentionRate != "42.50" || days[0].Day7RetentionRate != "" {
		t.Errorf("retention = %+v", days)
	}

	cohorts, err := repo.ListCohortRetention(ctx)
	if err != nil {
		t.Fatalf("cohorts: %v", err)
	}
	if len(cohorts) != 2 || cohorts[0].Day1Retention != 25 || cohorts[1].Day1Retention != 0 {
		t.Errorf("cohorts = %+v", cohorts)
	}

	visits, err := repo.ListScreenVisits(ctx, "u1")
	if err != nil {
		t.Fatalf("visits: %v", err)
	}
	if len(visits) != 1 || visits[0].DurationSeconds != 12.5 {
		t.Errorf("visits = %+v", visits)
	}
	if !visits[0].ScreenStartTime.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("screen start = %v", visits[0].ScreenStartTime)
	}
}
