package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/gymii/dashboard/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAdminUserNotFound = errors.New("admin user not found in database")
	ErrAdminUserExists   = errors.New("admin user already exists")
)

const profileColumns = `
	user_id,
	COALESCE(first_name, ''),
	COALESCE(email, ''),
	status,
	auto_renew_enabled,
	COALESCE(auto_renew_product_id, ''),
	COALESCE(product_id, ''),
	COALESCE(offer_id, ''),
	COALESCE(original_transaction_id, ''),
	COALESCE(expected_mmr, ''),
	credits,
	promo_code_count,
	promo_codes_used,
	onboarding_complete,
	COALESCE(diet_program_version, ''),
	COALESCE(dietary_preferences, '{}'::jsonb),
	COALESCE(referral_source, ''),
	created_at,
	last_active,
	purchase_date,
	expiry_date`

// ListSubscriptionProfiles returns every row of user_subscription_profile.
func (r *Repository) ListSubscriptionProfiles(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + profileColumns + ` FROM user_subscription_profile ORDER BY created_at DESC NULLS LAST`

	var users []model.User
	err := r.observe(ctx, "list_subscription_profiles", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanProfile(rows)
			if err != nil {
				return err
			}
			users = append(users, *u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription profiles: %w", err)
	}

	return users, nil
}

// GetSubscriptionProfile retrieves one profile by user id.
func (r *Repository) GetSubscriptionProfile(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + profileColumns + ` FROM user_subscription_profile WHERE user_id = $1`

	var user *model.User
	err := r.observe(ctx, "get_subscription_profile", func(ctx context.Context) error {
		var err error
		user, err = scanProfile(r.pool.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get subscription profile: %w", err)
	}

	return user, nil
}

func scanProfile(row pgx.Row) (*model.User, error) {
	var (
		u     model.User
		codes []sql.NullString
	)

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.Email,
		&u.Status,
		&u.AutoRenewEnabled,
		&u.AutoRenewProductID,
		&u.ProductID,
		&u.OfferID,
		&u.OriginalTransactionID,
		&u.ExpectedMMR,
		&u.Credits,
		&u.PromoCodeCount,
		pq.Array(&codes),
		&u.OnboardingComplete,
		&u.DietProgramVersion,
		&u.DietaryPreferences,
		&u.ReferralSource,
		&u.CreatedAt,
		&u.LastActive,
		&u.PurchaseDate,
		&u.ExpiryDate,
	)
	if err != nil {
		return nil, err
	}

	u.PromoCodesUsed = model.NormalizePromoCodes(nullableStrings(codes))
	return &u, nil
}

func nullableStrings(in []sql.NullString) []*string {
	out := make([]*string, len(in))
	for i, v := range in {
		if v.Valid {
			s := v.String
			out[i] = &s
		}
	}
	return out
}

// ListAdminUsers returns every row of the user table.
func (r *Repository) ListAdminUsers(ctx context.Context) ([]model.AdminUser, error) {
	query := `SELECT id, username, email FROM "user" ORDER BY id`

	var users []model.AdminUser
	err := r.observe(ctx, "list_admin_users", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u model.AdminUser
			if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}

	return users, nil
}

// GetAdminUserByEmail resolves the user row for an authenticated admin.
func (r *Repository) GetAdminUserByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	query := `SELECT id, username, email FROM "user" WHERE lower(email) = lower($1)`

	var u model.AdminUser
	err := r.observe(ctx, "get_admin_user_by_email", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Username, &u.Email)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminUserNotFound
		}
		return nil, fmt.Errorf("failed to get admin user by email: %w", err)
	}

	return &u, nil
}

// CreateAdminUser inserts a user row. Used by seeding and tests.
func (r *Repository) CreateAdminUser(ctx context.Context, u *model.AdminUser) error {
	query := `INSERT INTO "user" (username, email) VALUES ($1, $2) RETURNING id`

	err := r.observe(ctx, "create_admin_user", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, u.Username, u.Email).Scan(&u.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAdminUserExists
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	return nil
}
