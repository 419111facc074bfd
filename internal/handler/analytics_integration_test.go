//go:build integration

package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/cache"
	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/handler"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/middleware"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/repository"
	"github.com/gymii/dashboard/internal/service"
	"github.com/gymii/dashboard/internal/testutil"
)

func TestIntegrationRefreshAndComments(t *testing.T) {
	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	redisURL := testutil.RequireEnv(t, "TEST_REDIS_URL")

	rec := metrics.NewInMemory()
	repo, err := repository.New(ctx, dbURL, repository.WithRecorder(rec), repository.WithName("main"))
	if err != nil {
		t.Fatalf("connect db: %v", err)
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

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})
	if err := testutil.FlushRedis(ctx, cacheClient.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	paying := testutil.NewTestUser(t, testutil.UniqueID("paying"))
	if err := testutil.InsertTestUser(ctx, repo.Pool(), paying); err != nil {
		t.Fatal(err)
	}
	admin := &model.AdminUser{Username: "ops", Email: "ops@gymii.ai"}
	if err := repo.CreateAdminUser(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := datastore.New(datastore.Config{
		Main:      repo,
		Analytics: repo,
		Persist:   cacheClient,
		Metrics:   rec,
		Logger:    logger,
	})

	verifier := auth.NewVerifier("integration-secret-with-at-least-32-chars", auth.DefaultAudience, []string{admin.Email})
	router := handler.NewRouter(handler.RouterConfig{
		Logger:      logger,
		Metrics:     rec,
		ServiceName: "dashboard-integration",
		Auth:        verifier,
		RateLimit:   middleware.RateLimitConfig{Limiter: cacheClient, Enabled: true, RefreshPerMinute: 10, RefreshBurst: 2},
		Root:        handler.New("integration"),
		Health:      handler.NewHealthHandler(repo, repo, cacheClient),
		Analytics: handler.NewAnalyticsHandler(handler.AnalyticsConfig{
			Snapshot:   store,
			Refresher:  store,
			Classifier: kpi.DefaultClassifier(),
			Logger:     logger,
		}),
		Cost:  handler.NewCostHandler(cost.DefaultPrices(), rec, logger),
		Admin: handler.NewAdminHandler(service.NewUserService(repo, repo, store), service.NewCommentService(repo, rec, logger), logger),
	})

	token, err := verifier.Issue("", admin.Email, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := call(http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d: %s", w.Code, w.Body.String())
	}

	w := call(http.MethodPost, "/api/analytics/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", w.Code, w.Body.String())
	}

	w = call(http.MethodGet, "/api/analytics/kpi", "")
	var kpiResp dto.KPIResponse
	if err := json.NewDecoder(w.Body).Decode(&kpiResp); err != nil {
		t.Fatalf("decode kpi: %v", err)
	}
	if kpiResp.Metrics.TotalUsers != 1 || kpiResp.Metrics.PayingUsers != 1 {
		t.Errorf("kpi metrics = %+v", kpiResp.Metrics)
	}

	entry, err := cacheClient.GetSnapshot(ctx, datastore.QueryUsers)
	if err != nil || entry == nil {
		t.Fatalf("persisted users snapshot = %v, %v", entry, err)
	}

	w = call(http.MethodPost, "/api/admin/"+paying.ID+"/comments", `{"text":"renewed early","mood":"happy"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create comment = %d: %s", w.Code, w.Body.String())
	}
	var created model.AdminComment
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if created.AuthorID == nil || *created.AuthorID != admin.ID {
		t.Errorf("author = %v, want %d", created.AuthorID, admin.ID)
	}

	w = call(http.MethodGet, "/api/admin/"+paying.ID+"/comments", "")
	var comments []model.AdminComment
	if err := json.NewDecoder(w.Body).Decode(&comments); err != nil {
		t.Fatalf("decode comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Text != "renewed early" {
		t.Errorf("comments = %+v", comments)
	}

	if rec.Snapshot().SnapshotRefreshCount == 0 {
		t.Error("expected refresh run to be recorded")
	}
}
