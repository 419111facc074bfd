package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	mainDB      HealthChecker
	analyticsDB HealthChecker
	cache       HealthChecker
}

// NewHealthHandler creates a new HealthHandler.
// Any checker may be nil when the dependency is not configured.
func NewHealthHandler(mainDB, analyticsDB, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		mainDB:      mainDB,
		analyticsDB: analyticsDB,
		cache:       cache,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint. It does not touch dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz checks all dependencies and returns 200 only if all are healthy.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	for name, checker := range h.checkers() {
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status: status,
		Checks: checks,
	})
}

// DatabaseStatus reports each database connection.
type DatabaseStatus struct {
	AnalyticsDB      bool   `json:"analytics_db"`
	AnalyticsDBError string `json:"analytics_db_error,omitempty"`
	MainDB           bool   `json:"main_db"`
	MainDBError      string `json:"main_db_error,omitempty"`
}

// StatusDocument is the body of GET /health.
type StatusDocument struct {
	Server   string         `json:"server"`
	Message  string         `json:"message"`
	Database DatabaseStatus `json:"database"`
}

// Health always answers 200 and embeds the database connection status.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var db DatabaseStatus
	db.AnalyticsDB, db.AnalyticsDBError = ping(ctx, h.analyticsDB)
	db.MainDB, db.MainDBError = ping(ctx, h.mainDB)

	writeJSON(w, http.StatusOK, StatusDocument{
		Server:   "healthy",
		Message:  "Analytics server is running",
		Database: db,
	})
}

func (h *HealthHandler) checkers() map[string]HealthChecker {
	return map[string]HealthChecker{
		"main_db":      h.mainDB,
		"analytics_db": h.analyticsDB,
		"redis":        h.cache,
	}
}

func ping(ctx context.Context, c HealthChecker) (bool, string) {
	if c == nil {
		return false, "not configured"
	}
	if err := c.Ping(ctx); err != nil {
		return false, err.Error()
	}
	return true, ""
}
