package kpi

// Summary holds the ratios shown beside the headline metrics.
// Any ratio whose denominator is zero is reported as 0.
type Summary struct {
	OnboardingCompletionRate float64 `json:"onboarding_completion_rate"`
	ConversionRate           float64 `json:"conversion_rate"`
	AverageRevenuePerUser    float64 `json:"average_revenue_per_user"`
	ProjectedAnnualRevenue   float64 `json:"projected_annual_revenue"`
	FreeToPaidRatio          float64 `json:"free_to_paid_ratio"`
}

// Summarize derives the dashboard ratios from metrics.
func Summarize(m UserMetrics) Summary {
	return Summary{
		OnboardingCompletionRate: percent(m.UsersCompletedOnboarding, m.TotalUsers),
		ConversionRate:           ConversionRate(m),
		AverageRevenuePerUser:    safeDiv(m.EstimatedMonthlyRevenue, float64(m.ActiveSubscribers)),
		ProjectedAnnualRevenue:   m.EstimatedMonthlyRevenue * 12,
		FreeToPaidRatio:          safeDiv(float64(m.PayingUsers), float64(m.FreeUsers)),
	}
}

// ConversionRate is the share of onboarded, non-free users who pay, in percent.
func ConversionRate(m UserMetrics) float64 {
	if m.TotalUsers == 0 {
		return 0
	}
	return percent(m.PayingUsers, m.UsersCompletedOnboarding-m.FreeUsers)
}

func percent(part, whole int) float64 {
	return safeDiv(float64(part), float64(whole)) * 100
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

// Point is one labelled value of a chart series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Distribution splits the user base into inactive, free and paying users.
func Distribution(m UserMetrics) []Point {
	return []Point{
		{Label: "Inactive", Value: float64(m.TotalUsers - m.ActiveSubscribers)},
		{Label: "Free", Value: float64(m.FreeUsers)},
		{Label: "Paying", Value: float64(m.PayingUsers)},
	}
}

// Funnel returns the signup to paying conversion funnel.
func Funnel(m UserMetrics) []Point {
	return []Point{
		{Label: "Signed up", Value: float64(m.TotalUsers)},
		{Label: "Onboarded", Value: float64(m.UsersCompletedOnboarding)},
		{Label: "Subscribed", Value: float64(m.ActiveSubscribers)},
		{Label: "Paying", Value: float64(m.PayingUsers)},
	}
}

// SubscriptionBreakdown splits paying users by billing period.
func SubscriptionBreakdown(m UserMetrics) []Point {
	return []Point{
		{Label: "Monthly", Value: float64(m.MonthlySubscribers)},
		{Label: "Yearly", Value: float64(m.YearlySubscribers)},
	}
}
