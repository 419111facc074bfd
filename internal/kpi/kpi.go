// Package kpi computes subscription funnel and revenue aggregates from user records.
// Every function here is pure; nothing is persisted.
package kpi

import (
	"regexp"
	"strings"

	"github.com/gymii/dashboard/internal/model"
)

// DefaultTrialCode is the promo code that still counts as a paid conversion.
const DefaultTrialCode = "14-day-free"

// DefaultFreeMarker marks promo codes that grant free access.
const DefaultFreeMarker = "free"

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Classifier decides which active subscribers count as paying.
// The zero value uses DefaultTrialCode and DefaultFreeMarker.
type Classifier struct {
	TrialCode  string
	FreeMarker string
}

// DefaultClassifier returns a Classifier with the stock heuristic.
func DefaultClassifier() Classifier {
	return Classifier{TrialCode: DefaultTrialCode, FreeMarker: DefaultFreeMarker}
}

func (c Classifier) trialCode() string {
	if c.TrialCode == "" {
		return DefaultTrialCode
	}
	return c.TrialCode
}

func (c Classifier) freeMarker() string {
	if c.FreeMarker == "" {
		return DefaultFreeMarker
	}
	return strings.ToLower(c.FreeMarker)
}

// IsExcludedCode reports whether a promo code marks its holder as non-paying.
// UUID-shaped codes are one-off grants. Codes mentioning the free marker are
// free access, except the trial code which converts into a paid plan.
func (c Classifier) IsExcludedCode(code string) bool {
	if uuidPattern.MatchString(code) {
		return true
	}
	if code == c.trialCode() {
		return false
	}
	return strings.Contains(strings.ToLower(code), c.freeMarker())
}

// IsPaying reports whether the user is an active subscriber with no excluding code.
func (c Classifier) IsPaying(u *model.User) bool {
	if !u.IsActive() {
		return false
	}
	for _, code := range u.PromoCodesUsed {
		if c.IsExcludedCode(code) {
			return false
		}
	}
	return true
}

// UserMetrics is the dashboard's headline aggregate.
type UserMetrics struct {
	TotalUsers               int     `json:"total_users"`
	UsersCompletedOnboarding int     `json:"users_completed_onboarding"`
	ActiveSubscribers        int     `json:"active_subscribers"`
	PayingUsers              int     `json:"paying_users"`
	FreeUsers                int     `json:"free_users"`
	MonthlySubscribers       int     `json:"monthly_subscribers"`
	YearlySubscribers        int     `json:"yearly_subscribers"`
	EstimatedMonthlyRevenue  float64 `json:"estimated_monthly_revenue"`
}

// Compute aggregates users with the classifier.
// PayingUsers+FreeUsers always equals ActiveSubscribers and
// MonthlySubscribers+YearlySubscribers always equals PayingUsers.
func (c Classifier) Compute(users []model.User) UserMetrics {
	m := UserMetrics{TotalUsers: len(users)}

	for i := range users {
		u := &users[i]
		if u.OnboardingComplete {
			m.UsersCompletedOnboarding++
		}
		if !u.IsActive() {
			continue
		}
		m.ActiveSubscribers++

		if !c.IsPaying(u) {
			m.FreeUsers++
			continue
		}
		m.PayingUsers++
		m.EstimatedMonthlyRevenue += u.MonthlyRevenue()

		if IsMonthlyProduct(u.ProductID) {
			m.MonthlySubscribers++
		} else {
			m.YearlySubscribers++
		}
	}

	return m
}

// Compute aggregates users with the default classifier.
func Compute(users []model.User) UserMetrics {
	return DefaultClassifier().Compute(users)
}

// PayingUsers returns the subset of users classified as paying.
func (c Classifier) PayingUsers(users []model.User) []model.User {
	out := make([]model.User, 0)
	for i := range users {
		if c.IsPaying(&users[i]) {
			out = append(out, users[i])
		}
	}
	return out
}

// IsMonthlyProduct reports whether a store product id denotes a monthly plan.
func IsMonthlyProduct(productID string) bool {
	return strings.Contains(strings.ToLower(productID), "month")
}
