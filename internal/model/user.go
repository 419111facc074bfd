// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"strings"
	"time"
)

// StatusActive is the subscription status value for a live subscription.
const StatusActive = 1

// User is a subscription profile row from the main database.
// Records are read-only; only admin comments attached to them change.
type User struct {
	ID                    string          `json:"id"`
	FirstName             string          `json:"first_name"`
	Email                 string          `json:"email"`
	Status                int             `json:"status"`
	AutoRenewEnabled      bool            `json:"auto_renew_enabled"`
	AutoRenewProductID    string          `json:"auto_renew_product_id"`
	ProductID             string          `json:"product_id"`
	OfferID               string          `json:"offer_id"`
	OriginalTransactionID string          `json:"original_transaction_id"`
	ExpectedMMR           string          `json:"expected_mmr"`
	Credits               int             `json:"credits"`
	PromoCodeCount        int             `json:"promo_code_count"`
	PromoCodesUsed        []string        `json:"promo_codes_used"`
	OnboardingComplete    bool            `json:"onboarding_complete"`
	DietProgramVersion    string          `json:"diet_program_version"`
	DietaryPreferences    map[string]bool `json:"dietary_preferences"`
	ReferralSource        string          `json:"referral_source"`
	CreatedAt             *time.Time      `json:"created_at"`
	LastActive            *time.Time      `json:"last_active"`
	PurchaseDate          *time.Time      `json:"purchase_date"`
	ExpiryDate            *time.Time      `json:"expiry_date"`
}

// IsActive reports whether the user holds a live, auto-renewing subscription.
func (u *User) IsActive() bool {
	return u.Status == StatusActive && u.AutoRenewEnabled
}

// MonthlyRevenue parses ExpectedMMR. Blank or malformed values count as zero.
func (u *User) MonthlyRevenue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(u.ExpectedMMR), 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizePromoCodes converts a nullable text array into a clean list.
// A nil array, or one containing NULL elements, yields an empty list.
func NormalizePromoCodes(codes []*string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == nil {
			return []string{}
		}
		out = append(out, *c)
	}
	return out
}

// AdminUser is a row of the main database's user table.
// Admin comment authors are resolved against it by email.
type AdminUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
