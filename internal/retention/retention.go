// Package retention filters and groups retention rows for display.
package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gymii/dashboard/internal/model"
)

// Period is a retention checkpoint.
type Period string

const (
	PeriodDay1  Period = "d1"
	PeriodDay7  Period = "d7"
	PeriodDay14 Period = "d14"
)

// ParsePeriod validates a period name. An empty name means PeriodDay1.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDay1, nil
	case PeriodDay1, PeriodDay7, PeriodDay14:
		return p, nil
	default:
		return "", fmt.Errorf("unknown retention period %q", s)
	}
}

// Days is the age a row must reach before the period's rate is meaningful.
func (p Period) Days() int {
	switch p {
	case PeriodDay7:
		return 7
	case PeriodDay14:
		return 14
	default:
		return 1
	}
}

// Label is the human readable name of the period.
func (p Period) Label() string {
	return fmt.Sprintf("Day %d Retention", p.Days())
}

const dateLayout = "2006-01-02"

// parseDate accepts a bare date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if len(s) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}

// daysBetween counts whole days from then to now.
func daysBetween(now, then time.Time) int {
	return int(now.Sub(then).Hours() / 24)
}

// FilterObservable keeps rows old enough for the period's rate to be final.
// Rows with unparseable dates are dropped.
func FilterObservable(rows []model.RetentionDay, period Period, now time.Time) []model.RetentionDay {
	required := period.Days()
	out := make([]model.RetentionDay, 0, len(rows))
	for _, row := range rows {
		d, err := parseDate(row.Date)
		if err != nil {
			continue
		}
		if daysBetween(now, d) >= required {
			out = append(out, row)
		}
	}
	return out
}

// Rate parses the row's rate for period. Malformed values read as 0.
func Rate(row model.RetentionDay, period Period) float64 {
	var raw string
	switch period {
	case PeriodDay7:
		raw = row.Day7RetentionRate
	case PeriodDay14:
		raw = row.Day14RetentionRate
	default:
		raw = row.Day1RetentionRate
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// Series returns the observable rows' dates and rates for charting.
func Series(rows []model.RetentionDay, period Period, now time.Time) (labels []string, values []float64) {
	for _, row := range FilterObservable(rows, period, now) {
		labels = append(labels, row.Date)
		values = append(values, Rate(row, period))
	}
	return labels, values
}
