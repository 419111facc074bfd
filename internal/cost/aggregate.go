package cost

import "sort"

// Tokens is an input/output token pair.
type Tokens struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// Add returns the element-wise sum.
func (t Tokens) Add(o Tokens) Tokens {
	return Tokens{Input: t.Input + o.Input, Output: t.Output + o.Output}
}

// DailyUsage holds one day's token totals split by model.
type DailyUsage struct {
	Date    string            `json:"date"`
	ByModel map[string]Tokens `json:"by_model"`
	Total   Tokens            `json:"total"`
}

// Report is the token aggregate of an export.
type Report struct {
	Days        []DailyUsage      `json:"days"`
	Models      []string          `json:"models"`
	ModelTotals map[string]Tokens `json:"model_totals"`
	Total       Tokens            `json:"total"`
}

// Aggregate groups rows by date and model. Days are sorted ascending and
// models keep the order they first appear in. Aggregating the same rows
// twice yields identical reports.
func Aggregate(rows []Row) Report {
	report := Report{
		Days:        []DailyUsage{},
		Models:      []string{},
		ModelTotals: make(map[string]Tokens),
	}
	days := make(map[string]*DailyUsage)

	for _, row := range rows {
		t := Tokens{Input: row.InputTokens, Output: row.OutputTokens}

		day, ok := days[row.Date]
		if !ok {
			day = &DailyUsage{Date: row.Date, ByModel: make(map[string]Tokens)}
			days[row.Date] = day
		}
		day.ByModel[row.Model] = day.ByModel[row.Model].Add(t)
		day.Total = day.Total.Add(t)

		if _, seen := report.ModelTotals[row.Model]; !seen {
			report.Models = append(report.Models, row.Model)
		}
		report.ModelTotals[row.Model] = report.ModelTotals[row.Model].Add(t)
		report.Total = report.Total.Add(t)
	}

	for _, day := range days {
		report.Days = append(report.Days, *day)
	}
	sort.Slice(report.Days, func(i, j int) bool {
		return report.Days[i].Date < report.Days[j].Date
	})

	return report
}

// Series returns per-day values for one model, in day order.
// Days without usage for the model contribute zero.
func (r Report) Series(model string, pick func(Tokens) int64) []float64 {
	out := make([]float64, len(r.Days))
	for i, day := range r.Days {
		out[i] = float64(pick(day.ByModel[model]))
	}
	return out
}
