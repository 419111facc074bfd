package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/handler/handlertest"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/retention"
)

func TestFormatters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"currency small", Currency(9.5), "$9.50"},
		{"currency thousands", Currency(1234.5), "$1,234.50"},
		{"currency millions", Currency(1234567), "$1,234,567.00"},
		{"currency negative", Currency(-12), "-$12.00"},
		{"int", Int(999), "999"},
		{"int thousands", Int(1000), "1,000"},
		{"int64", Int(int64(12345678)), "12,345,678"},
		{"int negative", Int(-4500), "-4,500"},
		{"percent", Percent(42.26), "42.3%"},
		{"percent zero", Percent(0), "0.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	users, _, _, _, _ := handlertest.Fixture()
	m := kpi.DefaultClassifier().Compute(users)
	out := Dashboard(&dto.KPIResponse{
		Metrics:               m,
		Summary:               kpi.Summarize(m),
		Distribution:          kpi.Distribution(m),
		Funnel:                kpi.Funnel(m),
		SubscriptionBreakdown: kpi.SubscriptionBreakdown(m),
	})

	for _, want := range []string{"Total Users", "Active Subscribers", "Monthly Revenue", "Conversion Rate", "User Distribution", "Conversion Funnel"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if !strings.Contains(out, Currency(m.EstimatedMonthlyRevenue)) {
		t.Errorf("dashboard missing revenue %s", Currency(m.EstimatedMonthlyRevenue))
	}
}

func TestPager(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		page int
		want string
	}{
		{1, "page 1 of 3, next: -page 2"},
		{2, "page 2 of 3, previous: -page 1, next: -page 3"},
		{3, "page 3 of 3, previous: -page 2"},
	}
	for _, tt := range tests {
		p := paging.Paginate(items, tt.page, 2)
		if got := pager(&p); got != tt.want {
			t.Errorf("pager(page %d) = %q, want %q", tt.page, got, tt.want)
		}
	}

	empty := paging.Paginate([]int{}, 1, 2)
	if got := pager(&empty); got != "page 1 of 1" {
		t.Errorf("pager(empty) = %q", got)
	}
}

func TestUsersAndDetail(t *testing.T) {
	t.Parallel()

	users, _, _, _, _ := handlertest.Fixture()
	page := paging.Paginate(users, 1, 10)
	out := Users(&page)
	for _, want := range []string{"Paula", "tom@example.com", "inactive", "monthly", "yearly", "page 1 of 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("users table missing %q", want)
		}
	}

	empty := paging.Paginate([]model.User{}, 1, 10)
	if !strings.Contains(Users(&empty), "No users found") {
		t.Error("empty page should say so")
	}

	detail := UserDetail(&users[0])
	for _, want := range []string{"Paula", "vegan", "gymii.monthly", "2025-01-10"} {
		if !strings.Contains(detail, want) {
			t.Errorf("detail missing %q", want)
		}
	}
}

func TestComments(t *testing.T) {
	t.Parallel()

	if !strings.Contains(Comments(nil), "No comments yet") {
		t.Error("empty comments should say so")
	}

	happy := model.MoodHappy
	out := Comments([]model.AdminComment{
		{ID: 7, UserID: "u-paying", Text: "renewed early", Mood: &happy},
		{ID: 8, UserID: "u-paying", Text: "asked about refunds"},
	})
	for _, want := range []string{"renewed early", "asked about refunds", "happy", "7", "8"} {
		if !strings.Contains(out, want) {
			t.Errorf("comments missing %q", want)
		}
	}

	if Mood(nil) != "-" {
		t.Errorf("Mood(nil) = %q", Mood(nil))
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	_, _, _, _, visits := handlertest.Fixture()
	sessions := model.GroupSessions(visits["u-paying"])
	page := paging.Paginate(sessions, 1, paging.SessionsPageSize)

	out := Sessions(&page)
	for _, want := range []string{"s1", "home", "workout", "5m0s", "5m40s"} {
		if !strings.Contains(out, want) {
			t.Errorf("sessions missing %q", want)
		}
	}

	none := paging.Paginate([]model.ActivitySession{}, 1, 5)
	if !strings.Contains(Sessions(&none), "No activity recorded") {
		t.Error("empty sessions should say so")
	}
}

func TestRetentionAndCohorts(t *testing.T) {
	t.Parallel()

	_, _, days, cohorts, _ := handlertest.Fixture()

	out := Retention(days, retention.PeriodDay7)
	for _, want := range []string{"Day 7 Retention", "2025-01-02", "21.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("retention missing %q", want)
		}
	}

	report := retention.BuildCohortReport(cohorts)
	daily := Cohorts(&report, retention.ViewDaily)
	for _, want := range []string{"2025-01-06", "2025-01-07", "150"} {
		if !strings.Contains(daily, want) {
			t.Errorf("cohorts missing %q", want)
		}
	}

	weekly := Cohorts(&report, retention.ViewWeekly)
	if strings.Contains(weekly, "2025-01-07 ") {
		t.Error("weekly view should group cohorts")
	}
}

func TestCostReport(t *testing.T) {
	t.Parallel()

	rows, err := cost.Parse(strings.NewReader(
		"usage_date_utc,model_version,usage_input_tokens_no_cache,usage_input_tokens_cache_write,usage_input_tokens_cache_read,usage_output_tokens\n" +
			"2025-01-01,claude-3-5-sonnet-20241022,1000000,0,0,500000\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	usage := cost.Aggregate(rows)
	costs, err := usage.Costs(cost.DefaultPrices())
	if err != nil {
		t.Fatalf("Costs() error = %v", err)
	}

	out := CostReport(usage, costs)
	for _, want := range []string{"$10.50", "1,000,000", "500,000", "claude-3-5-sonnet-20241022", "2025-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("cost report missing %q", want)
		}
	}
}

func TestTable_Empty(t *testing.T) {
	t.Parallel()

	if got := Table([]string{"a"}, nil, "nothing here"); !strings.Contains(got, "nothing here") {
		t.Errorf("Table() = %q", got)
	}
	if got := LineChart(nil, 10, 1, ""); !strings.Contains(got, "No data available") {
		t.Errorf("LineChart() = %q", got)
	}
	if got := BarChart(nil, nil, 40); got != "" {
		t.Errorf("BarChart() = %q", got)
	}
}

func TestBarChart_Scales(t *testing.T) {
	t.Parallel()

	out := BarChart([]string{"free", "paying"}, []float64{1, 2}, 40)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if strings.Count(lines[1], "█") <= strings.Count(lines[0], "█") {
		t.Errorf("larger value should draw a longer bar:\n%s", out)
	}
}

func TestDialogReporter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewDialogReporter(&buf)
	ctx := context.Background()

	r.Report(ctx, errreport.NewEvent("Load users", errors.New("API request failed: Bad Gateway")))
	if r.Critical() {
		t.Error("plain API error should not be critical")
	}
	if !strings.Contains(buf.String(), "Re-run the command to retry.") {
		t.Errorf("dialog = %q", buf.String())
	}

	buf.Reset()
	r.Report(ctx, errreport.NewEvent("Sign in", fmt.Errorf("session: %w", errreport.ErrInit)))
	if !r.Critical() {
		t.Error("init error should be critical")
	}
	if !strings.Contains(buf.String(), "cannot be dismissed") || !strings.Contains(buf.String(), "Sign in") {
		t.Errorf("dialog = %q", buf.String())
	}
}
