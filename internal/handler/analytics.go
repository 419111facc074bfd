package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/retention"
)

// SnapshotReader exposes the in-memory query results.
type SnapshotReader interface {
	Users() []model.User
	DAU() []model.DAU
	Retention() []model.RetentionDay
	CohortRetention() []model.CohortRetention
	Meta() []datastore.Meta
}

// Refresher re-runs the snapshot queries.
type Refresher interface {
	Refresh(ctx context.Context) (*datastore.RefreshResult, error)
}

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	snapshot       SnapshotReader
	refresher      Refresher
	classifier     kpi.Classifier
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// AnalyticsConfig holds AnalyticsHandler dependencies.
type AnalyticsConfig struct {
	Snapshot       SnapshotReader
	Refresher      Refresher
	Classifier     kpi.Classifier
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(cfg AnalyticsConfig) *AnalyticsHandler {
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AnalyticsHandler{
		snapshot:       cfg.Snapshot,
		refresher:      cfg.Refresher,
		classifier:     cfg.Classifier,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
		logger:         cfg.Logger.With("component", "handler.analytics"),
	}
}

// Refresh handles POST /api/analytics/refresh.
func (h *AnalyticsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.refreshTimeout)
	defer cancel()

	res, err := h.refresher.Refresh(ctx)
	if err != nil {
		if res != nil {
			// Some queries succeeded and kept their new data.
			h.logger.WarnContext(ctx, "partial refresh", "run_id", res.RunID, "error", err)
			writeErrorJSON(w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
			return
		}
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RefreshResponse{
		Message:  "Queries refreshed successfully",
		RunID:    res.RunID,
		Duration: res.Duration.String(),
		Queries:  res.Queries,
	})
}

// Retention handles GET /api/analytics/retention.
// With ?period=d1|d7|d14 only rows old enough to be observable are returned.
func (h *AnalyticsHandler) Retention(w http.ResponseWriter, r *http.Request) {
	rows := h.snapshot.Retention()

	if raw := r.URL.Query().Get("period"); raw != "" {
		period, err := retention.ParsePeriod(raw)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_PERIOD", err.Error())
			return
		}
		rows = retention.FilterObservable(rows, period, h.now())
	}

	writeJSON(w, http.StatusOK, nonNil(rows))
}

// RetentionByCohort handles GET /api/analytics/retention_by_cohort.
func (h *AnalyticsHandler) RetentionByCohort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, retention.BuildCohortReport(h.snapshot.CohortRetention()))
}

// DAU handles GET /api/analytics/dau.
func (h *AnalyticsHandler) DAU(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.snapshot.DAU()))
}

// Users handles GET /api/analytics/users.
func (h *AnalyticsHandler) Users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ToUsersByID(h.snapshot.Users()))
}

// KPI handles GET /api/analytics/kpi.
func (h *AnalyticsHandler) KPI(w http.ResponseWriter, r *http.Request) {
	m := h.classifier.Compute(h.snapshot.Users())

	writeJSON(w, http.StatusOK, dto.KPIResponse{
		Metrics:               m,
		Summary:               kpi.Summarize(m),
		Distribution:          kpi.Distribution(m),
		Funnel:                kpi.Funnel(m),
		SubscriptionBreakdown: kpi.SubscriptionBreakdown(m),
		Snapshot:              h.snapshot.Meta(),
	})
}

// Snapshot handles GET /api/analytics/snapshot.
func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot.Meta())
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
