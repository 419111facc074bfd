// Package datastore holds the latest result of each dashboard query in memory.
//
// Results are persisted to Redis after every run, so a restarted process
// serves the last snapshot instead of re-querying both databases.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gymii/dashboard/internal/cache"
	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/model"
)

// Query names.
const (
	QueryUsers           = "users"
	QueryDAU             = "dau"
	QueryRetention       = "retention"
	QueryCohortRetention = "cohort_retention"
)

// Snapshot sources reported by Meta.
const (
	SourceRedis    = "redis"
	SourceDatabase = "database"
	SourceMissing  = "missing"
)

// ErrRefreshInProgress is returned when another instance holds the refresh lock.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// MainSource reads the main database.
type MainSource interface {
	ListSubscriptionProfiles(ctx context.Context) ([]model.User, error)
}

// AnalyticsSource reads the analytics database.
type AnalyticsSource interface {
	ListDAU(ctx context.Context) ([]model.DAU, error)
	ListDailyRetention(ctx context.Context) ([]model.RetentionDay, error)
	ListCohortRetention(ctx context.Context) ([]model.CohortRetention, error)
}

// Persister stores snapshots between restarts.
type Persister interface {
	GetSnapshot(ctx context.Context, name string) (*cache.SnapshotEntry, error)
	SetSnapshot(ctx context.Context, entry *cache.SnapshotEntry) error
	AcquireRefreshLock(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, runID string) error
}

// Meta describes the snapshot currently held for one query.
type Meta struct {
	Name        string    `json:"name"`
	RunID       string    `json:"run_id"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Rows        int       `json:"rows"`
	Source      string    `json:"source"`
}

// QueryResult is the outcome of one query in a refresh run.
type QueryResult struct {
	Name  string `json:"name"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// RefreshResult summarises a refresh run.
type RefreshResult struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started_at"`
	Duration time.Duration `json:"duration_ns"`
	Queries  []QueryResult `json:"queries"`
}

type loader struct {
	name   string
	fetch  func(ctx context.Context) (any, int, error)
	decode func(data []byte) (any, int, error)
}

func newLoader[T any](name string, fetch func(ctx context.Context) ([]T, error)) loader {
	return loader{
		name: name,
		fetch: func(ctx context.Context) (any, int, error) {
			rows, err := fetch(ctx)
			if rows == nil {
				rows = []T{}
			}
			return rows, len(rows), err
		},
		decode: func(data []byte) (any, int, error) {
			var rows []T
			if err := json.Unmarshal(data, &rows); err != nil {
				return nil, 0, err
			}
			return rows, len(rows), nil
		},
	}
}

// Store is safe for concurrent use.
type Store struct {
	loaders   []loader
	persist   Persister
	metrics   metrics.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	lockTTL   time.Duration
	timeout   time.Duration
	refreshSF singleflight.Group

	mu     sync.RWMutex
	values map[string]any
	meta   map[string]Meta
}

// Config holds Store dependencies. Persist and Metrics may be nil.
type Config struct {
	Main      MainSource
	Analytics AnalyticsSource
	Persist   Persister
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	// LockTTL bounds how long a crashed refresh can block others.
	LockTTL time.Duration
	// RefreshTimeout bounds one shared refresh run.
	RefreshTimeout time.Duration
}

// New creates an empty Store. Call Init to populate it.
func New(cfg Config) *Store {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 2 * time.Minute
	}

	return &Store{
		loaders: []loader{
			newLoader(QueryUsers, cfg.Main.ListSubscriptionProfiles),
			newLoader(QueryDAU, cfg.Analytics.ListDAU),
			newLoader(QueryRetention, cfg.Analytics.ListDailyRetention),
			newLoader(QueryCohortRetention, cfg.Analytics.ListCohortRetention),
		},
		persist: cfg.Persist,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "datastore"),
		tracer:  otel.Tracer("github.com/gymii/dashboard/internal/datastore"),
		lockTTL: cfg.LockTTL,
		timeout: cfg.RefreshTimeout,
		values:  make(map[string]any),
		meta:    make(map[string]Meta),
	}
}

// Init loads the latest persisted snapshot of every query, running the
// query when none exists. Queries that fail stay empty; the joined
// failures are returned so the caller can log them.
func (s *Store) Init(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "datastore.init")
	defer span.End()

	runID := ulid.Make().String()
	var errs []error

	for _, l := range s.loaders {
		if s.loadPersisted(ctx, l) {
			continue
		}

		value, rows, err := l.fetch(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "no data loaded", "query", l.name, "error", err)
			s.metrics.IncSnapshotLoad(SourceMissing)
			s.setMeta(Meta{Name: l.name, Source: SourceMissing})
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
			continue
		}

		s.store(ctx, l.name, value, Meta{
			Name:        l.name,
			RunID:       runID,
			RefreshedAt: time.Now().UTC(),
			Rows:        rows,
			Source:      SourceDatabase,
		})
		s.metrics.IncSnapshotLoad(SourceDatabase)
		s.logger.InfoContext(ctx, "loaded query into memory", "query", l.name, "rows", rows, "source", SourceDatabase)
	}

	return errors.Join(errs...)
}

func (s *Store) loadPersisted(ctx context.Context, l loader) bool {
	if s.persist == nil {
		return false
	}

	entry, err := s.persist.GetSnapshot(ctx, l.name)
	if err != nil {
		s.logger.WarnContext(ctx, "snapshot lookup failed", "query", l.name, "error", err)
		return false
	}
	if entry == nil {
		return false
	}

	value, rows, err := l.decode(entry.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable snapshot", "query", l.name, "error", err)
		return false
	}

	s.mu.Lock()
	s.values[l.name] = value
	s.meta[l.name] = Meta{
		Name:        l.name,
		RunID:       entry.RunID,
		RefreshedAt: entry.RefreshedAt,
		Rows:        rows,
		Source:      SourceRedis,
	}
	s.mu.Unlock()

	s.metrics.IncSnapshotLoad(SourceRedis)
	s.logger.InfoContext(ctx, "loaded query into memory", "query", l.name, "rows", rows, "source", SourceRedis, "run_id", entry.RunID)
	return true
}

// Refresh re-runs every query. Concurrent callers in this process share one
// run; a run in another process yields ErrRefreshInProgress. Queries that
// succeed replace their snapshot even when others fail.
//
// The shared run is detached from ctx and bounded by the store's refresh
// timeout. A caller whose ctx ends stops waiting; the run continues for
// the others.
func (s *Store) Refresh(ctx context.Context) (*RefreshResult, error) {
	ch := s.refreshSF.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(runCtx)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(*RefreshResult)
		return res, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) refresh(ctx context.Context) (*RefreshResult, error) {
	runID := ulid.Make().String()
	ctx, span := s.tracer.Start(ctx, "datastore.refresh", trace.WithAttributes(
		attribute.String("refresh.run_id", runID),
	))
	defer span.End()

	if s.persist != nil {
		ok, err := s.persist.AcquireRefreshLock(ctx, runID, s.lockTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "refresh lock unavailable, continuing", "error", err)
		} else if !ok {
			return nil, ErrRefreshInProgress
		} else {
			defer func() {
				if err := s.persist.ReleaseRefreshLock(context.WithoutCancel(ctx), runID); err != nil {
					s.logger.WarnContext(ctx, "failed to release refresh lock", "run_id", runID, "error", err)
				}
			}()
		}
	}

	res := &RefreshResult{
		RunID:   runID,
		Started: time.Now().UTC(),
		Queries: make([]QueryResult, len(s.loaders)),
	}
	s.logger.InfoContext(ctx, "refreshing all data", "run_id", runID)

	errs := make([]error, len(s.loaders))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range s.loaders {
		g.Go(func() error {
			value, rows, err := l.fetch(gctx)
			res.Queries[i] = QueryResult{Name: l.name, Rows: rows}
			if err != nil {
				res.Queries[i].Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", l.name, err)
				s.metrics.IncSnapshotRefresh(l.name, "failed")
				return nil
			}
			s.store(gctx, l.name, value, Meta{
				Name:        l.name,
				RunID:       runID,
				RefreshedAt: time.Now().UTC(),
				Rows:        rows,
				Source:      SourceDatabase,
			})
			s.metrics.IncSnapshotRefresh(l.name, "success")
			return nil
		})
	}
	_ = g.Wait()

	res.Duration = time.Since(res.Started)
	s.metrics.ObserveSnapshotRefreshDuration(res.Duration)

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		s.logger.ErrorContext(ctx, "refresh finished with errors", "run_id", runID, "error", err)
		return res, err
	}

	s.logger.InfoContext(ctx, "refresh finished", "run_id", runID, "duration", res.Duration)
	return res, nil
}

// store swaps value in and persists it. Persistence failures are logged only.
func (s *Store) store(ctx context.Context, name string, value any, meta Meta) {
	s.mu.Lock()
	s.values[name] = value
	s.meta[name] = meta
	s.mu.Unlock()

	if s.persist == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode snapshot", "query", name, "error", err)
		return
	}
	err = s.persist.SetSnapshot(ctx, &cache.SnapshotEntry{
		Name:        name,
		RunID:       meta.RunID,
		RefreshedAt: meta.RefreshedAt,
		Rows:        meta.Rows,
		Data:        data,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist snapshot", "query", name, "error", err)
	}
}

func (s *Store) setMeta(m Meta) {
	s.mu.Lock()
	s.meta[m.Name] = m
	s.mu.Unlock()
}

// Meta returns the metadata of every query, in query order.
func (s *Store) Meta() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Meta, 0, len(s.loaders))
	for _, l := range s.loaders {
		m, ok := s.meta[l.name]
		if !ok {
			m = Meta{Name: l.name, Source: SourceMissing}
		}
		out = append(out, m)
	}
	return out
}

func get[T any](s *Store, name string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, _ := s.values[name].([]T)
	return rows
}

// Users returns the cached subscription profiles. Callers must not mutate them.
func (s *Store) Users() []model.User {
	return get[model.User](s, QueryUsers)
}

// DAU returns the cached daily active user rows.
func (s *Store) DAU() []model.DAU {
	return get[model.DAU](s, QueryDAU)
}

// Retention returns the cached daily retention rows.
func (s *Store) Retention() []model.RetentionDay {
	return get[model.RetentionDay](s, QueryRetention)
}

// CohortRetention returns the cached cohort rows.
func (s *Store) CohortRetention() []model.CohortRetention {
	return get[model.CohortRetention](s, QueryCohortRetention)
}

// Loaded reports whether name holds data.
func (s *Store) Loaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[name]
	return ok
}
