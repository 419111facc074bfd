// Package repository provides database access for the main and analytics databases.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gymii/dashboard/internal/metrics"
)

const tracerName = "github.com/gymii/dashboard/internal/repository"

// Repository provides database access methods.
// The same type serves both databases; callers hold one per connection string.
type Repository struct {
	pool    *pgxpool.Pool
	name    string
	metrics metrics.Recorder
	tracer  trace.Tracer
}

// Option configures a Repository.
type Option func(*Repository)

// WithRecorder sets the metrics recorder used for query timing.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Repository) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

// WithName labels spans and metrics with the database name ("main", "analytics").
func WithName(name string) Option {
	return func(r *Repository) {
		r.name = name
	}
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithPool(pool, opts...), nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{
		pool:    pool,
		name:    "main",
		metrics: metrics.NewNoop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the database label.
func (r *Repository) Name() string {
	return r.name
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// observe runs fn inside a span and records its latency under op.
func (r *Repository) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "db."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", r.name),
		attribute.String("db.operation", op),
	))
	defer span.End()

	err := metrics.ObserveDB(r.metrics, r.name+"."+op, func() error {
		return fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
