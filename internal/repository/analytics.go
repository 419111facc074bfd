package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gymii/dashboard/internal/model"
)

// ListDAU returns the dau_users rows ordered by date.
func (r *Repository) ListDAU(ctx context.Context) ([]model.DAU, error) {
	query := `SELECT date::text, active_users FROM dau_users ORDER BY date`

	out := []model.DAU{}
	err := r.observe(ctx, "list_dau", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DAU, error) {
			var d model.DAU
			err := row.Scan(&d.Date, &d.ActiveUsers)
			return d, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list DAU: %w", err)
	}

	return out, nil
}

// ListDailyRetention returns the daily_retention_rates rows ordered by date.
// Rates are returned as decimal strings, blank when NULL.
func (r *Repository) ListDailyRetention(ctx context.Context) ([]model.RetentionDay, error) {
	query := `
		SELECT date::text,
		       COALESCE(day1_retention_rate::text, ''),
		       COALESCE(day7_retention_rate::text, ''),
		       COALESCE(day14_retention_rate::text, ''),
		       returning_users_day1,
		       returning_users_day7,
		       returning_users_day14,
		       total_users
		FROM daily_retention_rates
		ORDER BY date
	`

	out := []model.RetentionDay{}
	err := r.observe(ctx, "list_daily_retention", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RetentionDay, error) {
			var d model.RetentionDay
			err := row.Scan(
				&d.Date,
				&d.Day1RetentionRate,
				&d.Day7RetentionRate,
				&d.Day14RetentionRate,
				&d.ReturningUsersDay1,
				&d.ReturningUsersDay7,
				&d.ReturningUsersDay14,
				&d.TotalUsers,
			)
			return d, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list daily retention: %w", err)
	}

	return out, nil
}

// ListCohortRetention returns one row per signup cohort with percentage rates.
func (r *Repository) ListCohortRetention(ctx context.Context) ([]model.CohortRetention, error) {
	query := `
		SELECT cohort_date::text,
		       cohort_size,
		       day1_active_users,
		       day7_active_users,
		       day14_active_users,
		       day30_active_users,
		       COALESCE(ROUND(day1_active_users * 100.0 / NULLIF(cohort_size, 0), 2), 0)::float8,
		       COALESCE(ROUND(day7_active_users * 100.0 / NULLIF(cohort_size, 0), 2), 0)::float8,
		       COALESCE(ROUND(day14_active_users * 100.0 / NULLIF(cohort_size, 0), 2), 0)::float8,
		       COALESCE(ROUND(day30_active_users * 100.0 / NULLIF(cohort_size, 0), 2), 0)::float8
		FROM cohort_retention_rates
		ORDER BY cohort_date
	`

	out := []model.CohortRetention{}
	err := r.observe(ctx, "list_cohort_retention", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CohortRetention, error) {
			var c model.CohortRetention
			err := row.Scan(
				&c.CohortDate,
				&c.CohortSize,
				&c.Day1ActiveUsers,
				&c.Day7ActiveUsers,
				&c.Day14ActiveUsers,
				&c.Day30ActiveUsers,
				&c.Day1Retention,
				&c.Day7Retention,
				&c.Day14Retention,
				&c.Day30Retention,
			)
			return c, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cohort retention: %w", err)
	}

	return out, nil
}

// ListScreenVisits returns a user's screen visits from screen_durations_view.
func (r *Repository) ListScreenVisits(ctx context.Context, userID string) ([]model.ScreenVisit, error) {
	query := `
		SELECT user_id::text, session_id, screen, screen_start_time, screen_end_time,
		       COALESCE(duration_seconds, 0)::float8, session_start_time, session_end_time,
		       visit_date::text
		FROM screen_durations_view
		WHERE user_id::text = $1
		ORDER BY session_start_time DESC, screen_start_time
	`

	out := []model.ScreenVisit{}
	err := r.observe(ctx, "list_screen_visits", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ScreenVisit, error) {
			var v model.ScreenVisit
			err := row.Scan(
				&v.UserID,
				&v.SessionID,
				&v.Screen,
				&v.ScreenStartTime,
				&v.ScreenEndTime,
				&v.DurationSeconds,
				&v.SessionStartTime,
				&v.SessionEndTime,
				&v.VisitDate,
			)
			return v, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list screen visits: %w", err)
	}

	return out, nil
}
