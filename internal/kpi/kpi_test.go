package kpi

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gymii/dashboard/internal/model"
)

func activeUser(product string, codes ...string) model.User {
	return model.User{
		Status:             model.StatusActive,
		AutoRenewEnabled:   true,
		OnboardingComplete: true,
		ProductID:          product,
		ExpectedMMR:        "10",
		PromoCodesUsed:     codes,
	}
}

func TestClassifier_IsPaying(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()

	tests := []struct {
		name string
		user model.User
		want bool
	}{
		{"no codes", activeUser("monthly"), true},
		{"trial code only", activeUser("monthly", "14-day-free"), true},
		{"uuid code", activeUser("monthly", "3f2504e0-4f89-11d3-9a0c-0305e82c3301"), false},
		{"uppercase uuid code", activeUser("monthly", "3F2504E0-4F89-11D3-9A0C-0305E82C3301"), false},
		{"free code", activeUser("monthly", "FREEMONTH"), false},
		{"trial plus free code", activeUser("monthly", "14-day-free", "free-forever"), false},
		{"ordinary code", activeUser("monthly", "SPRING25"), true},
		{"inactive", model.User{Status: 0, AutoRenewEnabled: true}, false},
		{"auto renew off", model.User{Status: model.StatusActive}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsPaying(&tt.user); got != tt.want {
				t.Errorf("IsPaying() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomTrialCode(t *testing.T) {
	t.Parallel()

	c := Classifier{TrialCode: "30-day-free"}
	if c.IsExcludedCode("30-day-free") {
		t.Error("custom trial code should not exclude")
	}
	if !c.IsExcludedCode("14-day-free") {
		t.Error("default trial code should exclude once replaced")
	}
}

func TestCompute(t *testing.T) {
	t.Parallel()

	users := []model.User{
		activeUser("com.app.monthly"),
		activeUser("com.app.yearly"),
		activeUser("com.app.monthly", "free-pass"),
		{Status: 0, OnboardingComplete: true},
		{Status: 0},
	}
	users[1].ExpectedMMR = "5.5"

	m := Compute(users)

	want := UserMetrics{
		TotalUsers:               5,
		UsersCompletedOnboarding: 4,
		ActiveSubscribers:        3,
		PayingUsers:              2,
		FreeUsers:                1,
		MonthlySubscribers:       1,
		YearlySubscribers:        1,
		EstimatedMonthlyRevenue:  15.5,
	}
	if m != want {
		t.Errorf("Compute() = %+v, want %+v", m, want)
	}
}

func TestCompute_Empty(t *testing.T) {
	t.Parallel()

	m := Compute(nil)
	if m != (UserMetrics{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
	s := Summarize(m)
	if s != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestCompute_Invariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	codes := []string{"", "14-day-free", "free-month", "SPRING", "0b8e2a3c-1d4f-4e5a-9b6c-7d8e9f0a1b2c"}
	products := []string{"monthly_sub", "annual_sub", ""}
	c := DefaultClassifier()

	for round := 0; round < 200; round++ {
		n := rng.Intn(40)
		users := make([]model.User, n)
		for i := range users {
			users[i] = model.User{
				Status:             rng.Intn(3),
				AutoRenewEnabled:   rng.Intn(2) == 0,
				OnboardingComplete: rng.Intn(2) == 0,
				ProductID:          products[rng.Intn(len(products))],
				ExpectedMMR:        "1",
			}
			if code := codes[rng.Intn(len(codes))]; code != "" {
				users[i].PromoCodesUsed = []string{code}
			}
		}

		m := c.Compute(users)
		if m.PayingUsers+m.FreeUsers != m.ActiveSubscribers {
			t.Fatalf("round %d: paying %d + free %d != active %d", round, m.PayingUsers, m.FreeUsers, m.ActiveSubscribers)
		}
		if m.MonthlySubscribers+m.YearlySubscribers != len(c.PayingUsers(users)) {
			t.Fatalf("round %d: monthly+yearly != paying set size", round)
		}
		if m.ActiveSubscribers > m.TotalUsers || m.UsersCompletedOnboarding > m.TotalUsers {
			t.Fatalf("round %d: subset exceeds total: %+v", round, m)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	m := UserMetrics{
		TotalUsers:               100,
		UsersCompletedOnboarding: 60,
		ActiveSubscribers:        30,
		PayingUsers:              20,
		FreeUsers:                10,
		EstimatedMonthlyRevenue:  300,
	}

	s := Summarize(m)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"onboarding", s.OnboardingCompletionRate, 60},
		{"conversion", s.ConversionRate, 40},
		{"arpu", s.AverageRevenuePerUser, 10},
		{"annual", s.ProjectedAnnualRevenue, 3600},
		{"free to paid", s.FreeToPaidRatio, 2},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestConversionRate_ZeroDenominator(t *testing.T) {
	t.Parallel()

	m := UserMetrics{TotalUsers: 5, UsersCompletedOnboarding: 2, FreeUsers: 2, PayingUsers: 0}
	if got := ConversionRate(m); got != 0 {
		t.Errorf("ConversionRate() = %v, want 0", got)
	}
}

func TestFunnel(t *testing.T) {
	t.Parallel()

	m := UserMetrics{TotalUsers: 10, UsersCompletedOnboarding: 8, ActiveSubscribers: 5, PayingUsers: 3, FreeUsers: 2}
	f := Funnel(m)
	for i := 1; i < len(f); i++ {
		if f[i].Value > f[i-1].Value {
			t.Errorf("funnel step %s exceeds %s", f[i].Label, f[i-1].Label)
		}
	}

	d := Distribution(m)
	var total float64
	for _, p := range d {
		total += p.Value
	}
	if total != float64(m.TotalUsers) {
		t.Errorf("distribution sums to %v, want %d", total, m.TotalUsers)
	}
}
