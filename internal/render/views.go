package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/retention"
)

const chartWidth = 60

// Dashboard renders the four headline cards and the chart series.
func Dashboard(k *dto.KPIResponse) string {
	m, s := k.Metrics, k.Summary

	cards := StatCards(2,
		Card{
			Title:    "Total Users",
			Value:    Int(m.TotalUsers),
			Subtitle: "total registered users",
			Details: []Detail{
				{"Total Sign Ups", Int(m.TotalUsers)},
				{"Completed Onboarding", Int(m.UsersCompletedOnboarding)},
			},
		},
		Card{
			Title:    "Active Subscribers",
			Value:    Int(m.ActiveSubscribers),
			Subtitle: "active subscribers",
			Details: []Detail{
				{"Monthly Subscribers", Int(m.MonthlySubscribers)},
				{"Yearly Subscribers", Int(m.YearlySubscribers)},
			},
		},
		Card{
			Title:    "Monthly Revenue",
			Value:    Currency(m.EstimatedMonthlyRevenue),
			Subtitle: "estimated monthly revenue",
			Details: []Detail{
				{"Avg Revenue/User", Currency(s.AverageRevenuePerUser)},
				{"Projected Annual", Currency(s.ProjectedAnnualRevenue)},
			},
		},
		Card{
			Title:    "Conversion Rate",
			Value:    Percent(s.ConversionRate),
			Subtitle: "users to subscribers",
			Details: []Detail{
				{"Onboarding Completion", Percent(s.OnboardingCompletionRate)},
				{"Free to Paid Ratio", strconv.FormatFloat(s.FreeToPaidRatio, 'f', 2, 64) + ":1"},
			},
		},
	)

	sections := []string{
		Title("Dashboard"),
		cards,
		"",
		Title("User Distribution"),
		points(k.Distribution),
		"",
		Title("Conversion Funnel"),
		points(k.Funnel),
		"",
		Title("Subscription Breakdown"),
		points(k.SubscriptionBreakdown),
	}
	if len(k.Snapshot) > 0 {
		sections = append(sections, "", SnapshotMeta(k.Snapshot))
	}
	return strings.Join(sections, "\n")
}

func points(ps []kpi.Point) string {
	labels := make([]string, len(ps))
	values := make([]float64, len(ps))
	for i, p := range ps {
		labels[i], values[i] = p.Label, p.Value
	}
	return BarChart(labels, values, chartWidth)
}

// SnapshotMeta renders one line per snapshot query.
func SnapshotMeta(metas []datastore.Meta) string {
	var b strings.Builder
	for _, m := range metas {
		when := "never"
		if !m.RefreshedAt.IsZero() {
			when = m.RefreshedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "%s: %s rows from %s, refreshed %s\n", m.Name, Int(m.Rows), m.Source, when)
	}
	return Help(strings.TrimRight(b.String(), "\n"))
}

// Users renders a page of users.
func Users(page *paging.Page[model.User]) string {
	rows := make([][]string, 0, len(page.Items))
	for _, u := range page.Items {
		rows = append(rows, []string{u.ID, u.FirstName, u.Email, subscriptionLabel(u), dateOrDash(u.CreatedAt)})
	}

	return strings.Join([]string{
		Table([]string{"ID", "Name", "Email", "Subscription", "Joined"}, rows, "No users found"),
		Help(pager(page) + fmt.Sprintf(", %s users", Int(page.TotalItems))),
	}, "\n")
}

func subscriptionLabel(u model.User) string {
	if !u.IsActive() {
		return "inactive"
	}
	if kpi.IsMonthlyProduct(u.ProductID) {
		return "monthly"
	}
	return "yearly"
}

func dateOrDash(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// UserDetail renders one profile.
func UserDetail(u *model.User) string {
	promo := "-"
	if len(u.PromoCodesUsed) > 0 {
		promo = strings.Join(u.PromoCodesUsed, ", ")
	}

	var prefs []string
	for k, v := range u.DietaryPreferences {
		if v {
			prefs = append(prefs, k)
		}
	}
	sort.Strings(prefs)
	prefText := "-"
	if len(prefs) > 0 {
		prefText = strings.Join(prefs, ", ")
	}

	rows := [][]string{
		{"ID", u.ID},
		{"Email", u.Email},
		{"Subscription", subscriptionLabel(*u)},
		{"Product", orDash(u.ProductID)},
		{"Expected MMR", orDash(u.ExpectedMMR)},
		{"Promo codes", promo},
		{"Onboarding", strconv.FormatBool(u.OnboardingComplete)},
		{"Dietary preferences", prefText},
		{"Referral", orDash(u.ReferralSource)},
		{"Joined", dateOrDash(u.CreatedAt)},
		{"Last active", dateOrDash(u.LastActive)},
		{"Expires", dateOrDash(u.ExpiryDate)},
	}

	name := u.FirstName
	if name == "" {
		name = u.ID
	}
	return Title(name) + "\n" + Table([]string{"Field", "Value"}, rows, "")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Mood renders a comment mood, or a dash when unset.
func Mood(m *model.Mood) string {
	if m == nil {
		return "-"
	}
	s := string(*m)
	if e := m.Emoji(); e != "" {
		s = e + " " + s
	}
	if style, ok := moodStyles[string(*m)]; ok {
		return style.Render(s)
	}
	return s
}

// Comments renders admin comments, newest first as returned by the API.
func Comments(comments []model.AdminComment) string {
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		when := c.CreatedAt.Local().Format("2006-01-02 15:04")
		if c.UpdatedAt != nil {
			when += " (edited)"
		}
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), Mood(c.Mood), c.Text, when})
	}
	return Table([]string{"ID", "Mood", "Comment", "When"}, rows, "No comments yet")
}

// Sessions renders a page of activity sessions with their screens.
func Sessions(page *paging.Page[model.ActivitySession]) string {
	if len(page.Items) == 0 {
		return Help("No activity recorded")
	}

	var parts []string
	for _, s := range page.Items {
		head := fmt.Sprintf("%s  %s  %s", s.SessionID, s.StartTime.Local().Format("2006-01-02 15:04"), duration(s.DurationSeconds))
		rows := make([][]string, 0, len(s.Screens))
		for _, v := range s.Screens {
			rows = append(rows, []string{v.Screen, v.ScreenStartTime.Local().Format("15:04:05"), duration(v.DurationSeconds)})
		}
		parts = append(parts, Subtitle(head)+"\n"+Table([]string{"Screen", "Start", "Duration"}, rows, "no screens"))
	}
	parts = append(parts, Help(pager(page)))
	return strings.Join(parts, "\n")
}

// pager renders "page X of Y" with hints for the -page flag.
func pager[T any](page *paging.Page[T]) string {
	s := fmt.Sprintf("page %d of %d", page.Page, max(page.TotalPages, 1))
	if page.HasPrev() {
		s += fmt.Sprintf(", previous: -page %d", page.Page-1)
	}
	if page.HasNext() {
		s += fmt.Sprintf(", next: -page %d", page.Page+1)
	}
	return s
}

func duration(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

// Retention renders the observable daily rates for period as a chart and table.
func Retention(rows []model.RetentionDay, period retention.Period) string {
	values := make([]float64, 0, len(rows))
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		rate := retention.Rate(r, period)
		values = append(values, rate)
		tableRows = append(tableRows, []string{r.Date, Int(r.TotalUsers), Percent(rate)})
	}

	caption := period.Label() + " (%)"
	return strings.Join([]string{
		Title("Retention"),
		LineChart(values, chartWidth, 10, caption),
		"",
		Table([]string{"Date", "New users", "Rate"}, tableRows, "No observable days yet"),
	}, "\n")
}

// Cohorts renders one of the cohort report views.
func Cohorts(report *retention.CohortReport, view retention.View) string {
	headers := []string{"Cohort", "Size", "D1", "D7", "D14", "D30"}
	var rows [][]string
	var d1, d7 []float64
	for _, g := range report.Rows(view) {
		rows = append(rows, []string{g.Key, Int(g.CohortSize),
			Percent(g.Day1Retention), Percent(g.Day7Retention), Percent(g.Day14Retention), Percent(g.Day30Retention)})
		d1 = append(d1, g.Day1Retention)
		d7 = append(d7, g.Day7Retention)
	}

	o := report.OverallRetention
	overall := StatCards(4,
		Card{Title: "Day 1", Value: Percent(o.Day1Retention)},
		Card{Title: "Day 7", Value: Percent(o.Day7Retention)},
		Card{Title: "Day 14", Value: Percent(o.Day14Retention)},
		Card{Title: "Day 30", Value: Percent(o.Day30Retention)},
	)

	return strings.Join([]string{
		Title("Cohort retention"),
		overall,
		Help(fmt.Sprintf("overall across %s users", Int(o.CohortSize))),
		"",
		MultiLineChart([][]float64{d1, d7}, chartWidth, 10, "D1 (blue) and D7 (red) retention %"),
		"",
		Table(headers, rows, "No cohorts"),
	}, "\n")
}

// CostReport renders per-day token totals and dollars for a usage export.
func CostReport(usage cost.Report, costs cost.CostReport) string {
	rows := make([][]string, 0, len(usage.Days))
	daily := make([]float64, 0, len(costs.Days))
	for i, d := range usage.Days {
		dollars := cost.Dollars{}
		if i < len(costs.Days) {
			dollars = costs.Days[i].Total
		}
		rows = append(rows, []string{d.Date, Int(d.Total.Input), Int(d.Total.Output), Currency(dollars.Total)})
		daily = append(daily, dollars.Total)
	}

	modelRows := make([][]string, 0, len(usage.Models))
	for _, m := range usage.Models {
		t := usage.ModelTotals[m]
		modelRows = append(modelRows, []string{m, Int(t.Input), Int(t.Output), Currency(costs.ModelTotals[m].Total)})
	}

	cards := StatCards(3,
		Card{Title: "Input tokens", Value: Int(usage.Total.Input), Subtitle: Currency(costs.Total.Input)},
		Card{Title: "Output tokens", Value: Int(usage.Total.Output), Subtitle: Currency(costs.Total.Output)},
		Card{Title: "Total cost", Value: Currency(costs.Total.Total)},
	)

	return strings.Join([]string{
		Title("Token cost"),
		cards,
		"",
		LineChart(daily, chartWidth, 8, "daily cost ($)"),
		"",
		Table([]string{"Date", "Input", "Output", "Cost"}, rows, "No usage rows"),
		"",
		Table([]string{"Model", "Input", "Output", "Cost"}, modelRows, ""),
	}, "\n")
}

// RefreshResult renders the outcome of a refresh.
func RefreshResult(r *dto.RefreshResponse) string {
	rows := make([][]string, 0, len(r.Queries))
	for _, q := range r.Queries {
		status := "ok"
		if q.Error != "" {
			status = q.Error
		}
		rows = append(rows, []string{q.Name, Int(q.Rows), status})
	}
	return strings.Join([]string{
		r.Message,
		Help(fmt.Sprintf("run %s in %s", r.RunID, r.Duration)),
		Table([]string{"Query", "Rows", "Status"}, rows, ""),
	}, "\n")
}
