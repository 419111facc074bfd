package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/handler/handlertest"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/retention"
)

const usageCSV = `usage_date_utc,model_version,usage_input_tokens_no_cache,usage_input_tokens_cache_write,usage_input_tokens_cache_read,usage_output_tokens
2025-01-01T00:00:00Z,claude-3-7-sonnet-20250219,600000,300000,100000,500000
`

func do(t *testing.T, env *handlertest.Env, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestRouter_RequiresAdmin(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	outsider, _ := env.Verifier.Issue("", "someone@example.com", time.Hour)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{"no token", "/api/admin/me", "", http.StatusUnauthorized},
		{"not admin", "/api/analytics/kpi", outsider, http.StatusForbidden},
		{"admin", "/api/admin/me", env.Token(handlertest.AdminEmail), http.StatusOK},
		{"health is public", "/healthz", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env, http.MethodGet, tt.path, tt.token, nil, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	rec := do(t, env, http.MethodGet, "/nope", "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decode[dto.ErrorResponse](t, rec); body.Code != "NOT_FOUND" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestAdmin_Me(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	rec := do(t, env, http.MethodGet, "/api/admin/me", env.Token("Admin@Gymii.ai"), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	me := decode[dto.MeResponse](t, rec)
	if me.Email != handlertest.AdminEmail {
		t.Errorf("email = %q", me.Email)
	}
	if me.Message != "Authenticated as admin: admin@gymii.ai" {
		t.Errorf("message = %q", me.Message)
	}
}

func TestAnalytics_Refresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		partial    bool
		wantStatus int
		wantCode   string
	}{
		{"success", nil, false, http.StatusOK, ""},
		{"in progress elsewhere", datastore.ErrRefreshInProgress, false, http.StatusConflict, "REFRESH_IN_PROGRESS"},
		{"partial failure", errors.New("dau: relation does not exist"), true, http.StatusInternalServerError, "REFRESH_FAILED"},
		{"total failure", errors.New("connection refused"), false, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := handlertest.New()
			env.Snapshot.RefreshErr = tt.err
			env.Snapshot.PartialRefresh = tt.partial

			rec := do(t, env, http.MethodPost, "/api/analytics/refresh", env.Token(handlertest.AdminEmail), nil, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := env.Snapshot.Refreshes(); got != 1 {
				t.Errorf("Refreshes() = %d, want 1", got)
			}

			if tt.wantStatus == http.StatusOK {
				body := decode[dto.RefreshResponse](t, rec)
				if body.Message != "Queries refreshed successfully" || len(body.Queries) != 4 {
					t.Errorf("unexpected body: %+v", body)
				}
				return
			}

			body := decode[dto.ErrorResponse](t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.err != nil && !errors.Is(tt.err, datastore.ErrRefreshInProgress) && body.Error != tt.err.Error() {
				t.Errorf("error = %q, want %q", body.Error, tt.err.Error())
			}
		})
	}
}

func TestAnalytics_Reads(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	token := env.Token(handlertest.AdminEmail)

	t.Run("users keyed by id", func(t *testing.T) {
		rec := do(t, env, http.MethodGet, "/api/analytics/users", token, nil, "")
		users := decode[map[string]model.User](t, rec)
		if len(users) != 4 || users["u-trial"].FirstName != "Tom" {
			t.Errorf("users = %v", users)
		}
	})

	t.Run("kpi", func(t *testing.T) {
		rec := do(t, env, http.MethodGet, "/api/analytics/kpi", token, nil, "")
		body := decode[dto.KPIResponse](t, rec)
		m := body.Metrics
		if m.TotalUsers != 4 || m.ActiveSubscribers != 3 || m.PayingUsers != 2 || m.FreeUsers != 1 {
			t.Errorf("metrics = %+v", m)
		}
		if m.MonthlySubscribers != 1 || m.YearlySubscribers != 1 {
			t.Errorf("plan split = %d/%d", m.MonthlySubscribers, m.YearlySubscribers)
		}
		if len(body.Snapshot) != 4 {
			t.Errorf("snapshot meta = %v", body.Snapshot)
		}
	})

	t.Run("retention", func(t *testing.T) {
		rec := do(t, env, http.MethodGet, "/api/analytics/retention", token, nil, "")
		rows := decode[[]model.RetentionDay](t, rec)
		if len(rows) != 2 {
			t.Errorf("rows = %d", len(rows))
		}

		rec = do(t, env, http.MethodGet, "/api/analytics/retention?period=d30", token, nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad period status = %d", rec.Code)
		}
	})

	t.Run("cohorts", func(t *testing.T) {
		rec := do(t, env, http.MethodGet, "/api/analytics/retention_by_cohort", token, nil, "")
		report := decode[retention.CohortReport](t, rec)
		if len(report.RetentionAnalysis) != 2 || len(report.WeeklyAvg) != 1 || len(report.MonthlyAvg) != 1 {
			t.Errorf("report = %+v", report)
		}
		if report.OverallRetention.CohortSize != 150 {
			t.Errorf("overall size = %d", report.OverallRetention.CohortSize)
		}
	})

	t.Run("dau", func(t *testing.T) {
		rec := do(t, env, http.MethodGet, "/api/analytics/dau", token, nil, "")
		if rows := decode[[]model.DAU](t, rec); len(rows) != 2 {
			t.Errorf("rows = %d", len(rows))
		}
	})
}

func TestAdmin_FixedPathsWinOverUserID(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	token := env.Token(handlertest.AdminEmail)

	tests := []struct {
		path    string
		wantKey string
	}{
		{"/api/admin/me", "message"},
		{"/api/admin/users", "total_pages"},
	}
	for _, tt := range tests {
		rec := do(t, env, http.MethodGet, tt.path, token, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.path, rec.Code)
			continue
		}
		body := decode[map[string]any](t, rec)
		if _, ok := body[tt.wantKey]; !ok {
			t.Errorf("%s: body has no %q: %v", tt.path, tt.wantKey, body)
		}
		if _, ok := body["first_name"]; ok {
			t.Errorf("%s was served as a user profile", tt.path)
		}
	}
}

func TestAdmin_Users(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	token := env.Token(handlertest.AdminEmail)

	rec := do(t, env, http.MethodGet, "/api/admin/", token, nil, "")
	if admins := decode[[]model.AdminUser](t, rec); len(admins) != 1 || admins[0].ID != handlertest.AdminID {
		t.Errorf("admins = %+v", admins)
	}

	rec = do(t, env, http.MethodGet, "/api/admin/users?q=example.com&page=2&page_size=3", token, nil, "")
	page := decode[paging.Page[model.User]](t, rec)
	if page.TotalItems != 4 || page.TotalPages != 2 || page.Page != 2 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}

	rec = do(t, env, http.MethodGet, "/api/admin/u-free", token, nil, "")
	if u := decode[model.User](t, rec); u.FirstName != "Fiona" {
		t.Errorf("user = %+v", u)
	}

	rec = do(t, env, http.MethodGet, "/api/admin/missing", token, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d", rec.Code)
	}
	if body := decode[dto.ErrorResponse](t, rec); body.Error != "User not found" {
		t.Errorf("error = %q", body.Error)
	}

	rec = do(t, env, http.MethodGet, "/api/admin/u-paying/sessions", token, nil, "")
	sessions := decode[paging.Page[model.ActivitySession]](t, rec)
	if sessions.PageSize != paging.SessionsPageSize || len(sessions.Items) != 1 || len(sessions.Items[0].Screens) != 2 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestAdmin_CommentLifecycle(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	token := env.Token(handlertest.AdminEmail)

	rec := do(t, env, http.MethodPost, "/api/admin/u-paying/comments", token,
		strings.NewReader(`{"text":"asked for a refund","mood":"sad"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	created := decode[model.AdminComment](t, rec)
	if created.AuthorID == nil || *created.AuthorID != handlertest.AdminID {
		t.Errorf("author = %v", created.AuthorID)
	}
	if created.Mood == nil || *created.Mood != model.MoodSad {
		t.Errorf("mood = %v", created.Mood)
	}

	path := "/api/admin/comments/" + jsonNumber(created.ID)

	rec = do(t, env, http.MethodPut, path, token, strings.NewReader(`{"text":"refund issued"}`), "application/json")
	updated := decode[model.AdminComment](t, rec)
	if updated.Text != "refund issued" || updated.Mood == nil || updated.UpdatedAt == nil {
		t.Errorf("after text update = %+v", updated)
	}

	rec = do(t, env, http.MethodPut, path, token, strings.NewReader(`{"mood":null}`), "application/json")
	if cleared := decode[model.AdminComment](t, rec); cleared.Mood != nil {
		t.Errorf("mood not cleared: %v", *cleared.Mood)
	}

	rec = do(t, env, http.MethodGet, "/api/admin/u-paying/comments", token, nil, "")
	if list := decode[[]model.AdminComment](t, rec); len(list) != 1 {
		t.Errorf("comments = %d", len(list))
	}

	rec = do(t, env, http.MethodDelete, path, token, nil, "")
	if body := decode[dto.MessageResponse](t, rec); body.Message != "Comment deleted successfully" {
		t.Errorf("delete message = %q", body.Message)
	}

	rec = do(t, env, http.MethodDelete, path, token, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}

	snap := env.Metrics.Snapshot()
	if snap.CommentsCreated != 1 || snap.CommentsUpdated != 2 || snap.CommentsDeleted != 1 {
		t.Errorf("comment metrics = %d/%d/%d", snap.CommentsCreated, snap.CommentsUpdated, snap.CommentsDeleted)
	}
}

func TestAdmin_CommentErrors(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	admin := env.Token(handlertest.AdminEmail)
	orphan := env.Token("orphan@gymii.ai")

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"bad json", http.MethodPost, "/api/admin/u-paying/comments", admin, `{`, http.StatusBadRequest, "INVALID_JSON"},
		{"missing text", http.MethodPost, "/api/admin/u-paying/comments", admin, `{}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad mood", http.MethodPost, "/api/admin/u-paying/comments", admin, `{"text":"x","mood":"angry"}`, http.StatusBadRequest, "INVALID_MOOD"},
		{"unknown user", http.MethodPost, "/api/admin/ghost/comments", admin, `{"text":"x"}`, http.StatusNotFound, "USER_NOT_FOUND"},
		{"admin without row", http.MethodPost, "/api/admin/u-paying/comments", orphan, `{"text":"x"}`, http.StatusInternalServerError, "ADMIN_USER_NOT_FOUND"},
		{"bad comment id", http.MethodPut, "/api/admin/comments/abc", admin, `{"text":"x"}`, http.StatusBadRequest, "INVALID_COMMENT_ID"},
		{"unknown comment", http.MethodPut, "/api/admin/comments/999", admin, `{"text":"x"}`, http.StatusNotFound, "COMMENT_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env, tt.method, tt.path, tt.token, strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body := decode[dto.ErrorResponse](t, rec); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestCost_Report(t *testing.T) {
	t.Parallel()

	env := handlertest.New()
	token := env.Token(handlertest.AdminEmail)

	t.Run("raw csv", func(t *testing.T) {
		rec := do(t, env, http.MethodPost, "/api/cost/report", token, strings.NewReader(usageCSV), "text/csv")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		var body struct {
			Costs struct {
				Days []struct {
					Date  string `json:"date"`
					Total struct {
						Total float64 `json:"total"`
					} `json:"total"`
				} `json:"days"`
			} `json:"costs"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Costs.Days) != 1 || body.Costs.Days[0].Date != "2025-01-01" {
			t.Fatalf("days = %+v", body.Costs.Days)
		}
		if got := body.Costs.Days[0].Total.Total; got < 10.4999 || got > 10.5001 {
			t.Errorf("day cost = %v, want 10.50", got)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "usage.csv")
		_, _ = fw.Write([]byte(usageCSV))
		_ = mw.Close()

		rec := do(t, env, http.MethodPost, "/api/cost/report", token, &buf, mw.FormDataContentType())
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("unpriced model", func(t *testing.T) {
		csv := strings.ReplaceAll(usageCSV, "claude-3-7-sonnet-20250219", "mystery-model")
		rec := do(t, env, http.MethodPost, "/api/cost/report", token, strings.NewReader(csv), "text/csv")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := decode[dto.ErrorResponse](t, rec); body.Code != "UNKNOWN_MODEL" {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		rec := do(t, env, http.MethodPost, "/api/cost/report", token, strings.NewReader("a,b\n1,2\n"), "text/csv")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decode[dto.ErrorResponse](t, rec)
		if body.Code != "INVALID_CSV" || !strings.HasPrefix(body.Error, "error parsing CSV file:") {
			t.Errorf("body = %+v", body)
		}
	})
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
