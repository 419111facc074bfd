package retention

import (
	"fmt"
	"sort"

	"github.com/gymii/dashboard/internal/model"
)

// View selects how cohorts are displayed.
type View string

const (
	ViewDaily   View = "daily"
	ViewWeekly  View = "weekly"
	ViewMonthly View = "monthly"
)

// GroupedCohort aggregates several daily cohorts. Sizes and active users are
// summed; retention rates are the mean of the member cohorts' rates.
type GroupedCohort struct {
	Key              string  `json:"key"`
	Cohorts          int     `json:"cohorts"`
	CohortSize       int     `json:"cohort_size"`
	Day1ActiveUsers  int     `json:"day1_active_users"`
	Day7ActiveUsers  int     `json:"day7_active_users"`
	Day14ActiveUsers int     `json:"day14_active_users"`
	Day30ActiveUsers int     `json:"day30_active_users"`
	Day1Retention    float64 `json:"day1_retention"`
	Day7Retention    float64 `json:"day7_retention"`
	Day14Retention   float64 `json:"day14_retention"`
	Day30Retention   float64 `json:"day30_retention"`
}

// Overall is the size-weighted retention across every cohort, in percent.
type Overall struct {
	CohortSize     int     `json:"cohort_size"`
	Day1Retention  float64 `json:"day1_retention"`
	Day7Retention  float64 `json:"day7_retention"`
	Day14Retention float64 `json:"day14_retention"`
	Day30Retention float64 `json:"day30_retention"`
}

// CohortReport is the payload of the cohort retention endpoint.
type CohortReport struct {
	RetentionAnalysis []model.CohortRetention `json:"retention_analysis"`
	WeeklyAvg         []GroupedCohort         `json:"weekly_avg"`
	MonthlyAvg        []GroupedCohort         `json:"monthly_avg"`
	OverallRetention  Overall                 `json:"overall_retention"`
}

// BuildCohortReport sorts cohorts by date and derives the grouped views.
func BuildCohortReport(cohorts []model.CohortRetention) CohortReport {
	sorted := append([]model.CohortRetention{}, cohorts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CohortDate < sorted[j].CohortDate
	})

	return CohortReport{
		RetentionAnalysis: sorted,
		WeeklyAvg:         Group(sorted, WeekKey),
		MonthlyAvg:        Group(sorted, MonthKey),
		OverallRetention:  ComputeOverall(sorted),
	}
}

// MonthKey buckets a cohort date as YYYY-MM.
func MonthKey(date string) (string, error) {
	t, err := parseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01"), nil
}

// WeekKey buckets a cohort date as an ISO week, YYYY-Www.
func WeekKey(date string) (string, error) {
	t, err := parseDate(date)
	if err != nil {
		return "", err
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week), nil
}

// Group buckets cohorts by key and averages their rates. Output is ordered
// by key. Cohorts whose date cannot be keyed are skipped.
func Group(cohorts []model.CohortRetention, key func(string) (string, error)) []GroupedCohort {
	buckets := make(map[string]*GroupedCohort)
	var keys []string

	for _, c := range cohorts {
		k, err := key(c.CohortDate)
		if err != nil {
			continue
		}
		g, ok := buckets[k]
		if !ok {
			g = &GroupedCohort{Key: k}
			buckets[k] = g
			keys = append(keys, k)
		}
		g.Cohorts++
		g.CohortSize += c.CohortSize
		g.Day1ActiveUsers += c.Day1ActiveUsers
		g.Day7ActiveUsers += c.Day7ActiveUsers
		g.Day14ActiveUsers += c.Day14ActiveUsers
		g.Day30ActiveUsers += c.Day30ActiveUsers
		g.Day1Retention += c.Day1Retention
		g.Day7Retention += c.Day7Retention
		g.Day14Retention += c.Day14Retention
		g.Day30Retention += c.Day30Retention
	}

	sort.Strings(keys)
	out := make([]GroupedCohort, 0, len(keys))
	for _, k := range keys {
		g := buckets[k]
		n := float64(g.Cohorts)
		g.Day1Retention /= n
		g.Day7Retention /= n
		g.Day14Retention /= n
		g.Day30Retention /= n
		out = append(out, *g)
	}
	return out
}

// ComputeOverall weights each checkpoint by cohort size.
func ComputeOverall(cohorts []model.CohortRetention) Overall {
	var o Overall
	var d1, d7, d14, d30 int
	for _, c := range cohorts {
		o.CohortSize += c.CohortSize
		d1 += c.Day1ActiveUsers
		d7 += c.Day7ActiveUsers
		d14 += c.Day14ActiveUsers
		d30 += c.Day30ActiveUsers
	}
	if o.CohortSize == 0 {
		return o
	}
	size := float64(o.CohortSize)
	o.Day1Retention = float64(d1) / size * 100
	o.Day7Retention = float64(d7) / size * 100
	o.Day14Retention = float64(d14) / size * 100
	o.Day30Retention = float64(d30) / size * 100
	return o
}

// Rows returns the cohort table for a view.
func (r CohortReport) Rows(view View) []GroupedCohort {
	switch view {
	case ViewWeekly:
		return r.WeeklyAvg
	case ViewMonthly:
		return r.MonthlyAvg
	default:
		out := make([]GroupedCohort, len(r.RetentionAnalysis))
		for i, c := range r.RetentionAnalysis {
			out[i] = GroupedCohort{
				Key:              c.CohortDate,
				Cohorts:          1,
				CohortSize:       c.CohortSize,
				Day1ActiveUsers:  c.Day1ActiveUsers,
				Day7ActiveUsers:  c.Day7ActiveUsers,
				Day14ActiveUsers: c.Day14ActiveUsers,
				Day30ActiveUsers: c.Day30ActiveUsers,
				Day1Retention:    c.Day1Retention,
				Day7Retention:    c.Day7Retention,
				Day14Retention:   c.Day14Retention,
				Day30Retention:   c.Day30Retention,
			}
		}
		return out
	}
}
