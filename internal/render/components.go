package render

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"

	"github.com/gymii/dashboard/internal/errreport"
)

// Detail is a labelled secondary figure on a stat card.
type Detail struct {
	Label string
	Value string
}

// Card is one stat card.
type Card struct {
	Title    string
	Value    string
	Subtitle string
	Details  []Detail
}

// StatCard renders a single bordered card.
func StatCard(c Card) string {
	lines := []string{
		cardTitleStyle.Render(c.Title),
		cardValueStyle.Render(c.Value),
	}
	if c.Subtitle != "" {
		lines = append(lines, subtitleStyle.Render(c.Subtitle))
	}
	if len(c.Details) > 0 {
		lines = append(lines, "")
		for _, d := range c.Details {
			lines = append(lines, fmt.Sprintf("%s: %s", cardTitleStyle.Render(d.Label), d.Value))
		}
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// StatCards lays cards out in rows of perRow.
func StatCards(perRow int, cards ...Card) string {
	if perRow <= 0 {
		perRow = 2
	}

	var rows []string
	for i := 0; i < len(cards); i += perRow {
		end := min(i+perRow, len(cards))
		rendered := make([]string, 0, end-i)
		for _, c := range cards[i:end] {
			rendered = append(rendered, StatCard(c))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Table renders rows under headers. An empty table shows empty instead.
func Table(headers []string, rows [][]string, empty string) string {
	if len(rows) == 0 {
		return helpStyle.Render(empty)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Subtle)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// LineChart plots one series. Charts smaller than 20x3 are enlarged.
func LineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return helpStyle.Render("No data available")
	}
	width = max(width, 20)
	height = max(height, 3)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// MultiLineChart plots several series, padding shorter ones with zeros.
func MultiLineChart(series [][]float64, width, height int, caption string) string {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	if longest == 0 {
		return helpStyle.Render("No data available")
	}

	padded := make([][]float64, len(series))
	for i, s := range series {
		padded[i] = make([]float64, longest)
		copy(padded[i], s)
	}

	colors := []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow}
	return asciigraph.PlotMany(padded,
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors[:min(len(padded), len(colors))]...),
	)
}

// BarChart renders labelled horizontal bars scaled to the largest value.
func BarChart(labels []string, values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}

	top := 0.0
	labelWidth := 0
	for i, v := range values {
		top = math.Max(top, v)
		if i < len(labels) {
			labelWidth = max(labelWidth, lipgloss.Width(labels[i]))
		}
	}
	if top == 0 {
		top = 1
	}
	barWidth := max(width-labelWidth-12, 10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		n := max(int(v/top*float64(barWidth)), 0)
		bar := lipgloss.NewStyle().Foreground(Primary).Render(strings.Repeat("█", n))
		lines = append(lines, fmt.Sprintf("%*s │%s %s", labelWidth, label, bar, trimFloat(v)))
	}
	return strings.Join(lines, "\n")
}

// ErrorDialog renders an error event. Critical events say they cannot be dismissed.
func ErrorDialog(ev errreport.Event) string {
	color := Warning
	footer := "Re-run the command to retry."
	if ev.Class == errreport.Critical {
		color = Danger
		footer = "This error cannot be dismissed. Fix the configuration and restart."
	}

	title := ev.Title
	if title == "" {
		title = "Error"
	}
	msg := "unknown error"
	if ev.Err != nil {
		msg = ev.Err.Error()
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(title),
		"",
		msg,
		"",
		helpStyle.Render(footer),
	)
	return dialogStyle.BorderForeground(color).Render(body)
}

// DialogReporter writes every reported error as a dialog.
type DialogReporter struct {
	mu       sync.Mutex
	w        io.Writer
	critical bool
}

// NewDialogReporter writes dialogs to w, usually stderr.
func NewDialogReporter(w io.Writer) *DialogReporter {
	return &DialogReporter{w: w}
}

// Report renders ev to the writer.
func (r *DialogReporter) Report(_ context.Context, ev errreport.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Class == errreport.Critical {
		r.critical = true
	}
	fmt.Fprintln(r.w, ErrorDialog(ev))
}

// Critical reports whether a critical event was seen.
func (r *DialogReporter) Critical() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.critical
}

// Currency formats dollars with two decimals.
func Currency(v float64) string {
	if v < 0 {
		return "-$" + commas(strconv.FormatFloat(-v, 'f', 2, 64))
	}
	return "$" + commas(strconv.FormatFloat(v, 'f', 2, 64))
}

// Percent formats a 0-100 value with one decimal.
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// Int formats n with thousands separators.
func Int[T ~int | ~int64](n T) string {
	if n < 0 {
		return "-" + commas(strconv.FormatInt(int64(-n), 10))
	}
	return commas(strconv.FormatInt(int64(n), 10))
}

func commas(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return intPart + "." + frac
	}
	return intPart
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
