package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dashboard"

// PromRecorder implements Recorder on Prometheus collectors.
type PromRecorder struct {
	requestsTotal    *prometheus.CounterVec
	requestsDuration *prometheus.HistogramVec

	snapshotRefreshes *prometheus.CounterVec
	refreshDuration   prometheus.Histogram
	snapshotLoads     *prometheus.CounterVec

	dbQueryDuration *prometheus.HistogramVec
	dbErrorsTotal   *prometheus.CounterVec

	comments    *prometheus.CounterVec
	costReports *prometheus.CounterVec
}

// NewProm registers the dashboard collectors on reg.
func NewProm(reg prometheus.Registerer) *PromRecorder {
	p := &PromRecorder{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		requestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		snapshotRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "refreshes_total",
				Help:      "Snapshot query refreshes by query and outcome.",
			},
			[]string{"query", "status"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of a full snapshot refresh run.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		snapshotLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "loads_total",
				Help:      "Startup snapshot loads by source.",
			},
			[]string{"source"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		dbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		comments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admin",
				Name:      "comment_mutations_total",
				Help:      "Admin comment mutations by action.",
			},
			[]string{"action"},
		),
		costReports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cost",
				Name:      "reports_total",
				Help:      "CSV cost reports by outcome.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		p.requestsTotal, p.requestsDuration,
		p.snapshotRefreshes, p.refreshDuration, p.snapshotLoads,
		p.dbQueryDuration, p.dbErrorsTotal,
		p.comments, p.costReports,
	)

	return p
}

func (p *PromRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	p.requestsTotal.WithLabelValues(method, route, s).Inc()
	p.requestsDuration.WithLabelValues(method, route, s).Observe(duration.Seconds())
}

func (p *PromRecorder) IncSnapshotRefresh(query, status string) {
	p.snapshotRefreshes.WithLabelValues(query, status).Inc()
}

func (p *PromRecorder) ObserveSnapshotRefreshDuration(duration time.Duration) {
	p.refreshDuration.Observe(duration.Seconds())
}

func (p *PromRecorder) IncSnapshotLoad(source string) {
	p.snapshotLoads.WithLabelValues(source).Inc()
}

func (p *PromRecorder) ObserveDBQuery(op, status string, duration time.Duration) {
	p.dbQueryDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

func (p *PromRecorder) IncDBError(op, class string) {
	p.dbErrorsTotal.WithLabelValues(op, class).Inc()
}

func (p *PromRecorder) IncCommentCreated() {
	p.comments.WithLabelValues("create").Inc()
}

func (p *PromRecorder) IncCommentUpdated() {
	p.comments.WithLabelValues("update").Inc()
}

func (p *PromRecorder) IncCommentDeleted() {
	p.comments.WithLabelValues("delete").Inc()
}

func (p *PromRecorder) IncCostReport(status string) {
	p.costReports.WithLabelValues(status).Inc()
}
