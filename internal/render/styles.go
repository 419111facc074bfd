// Package render draws dashboard data for the terminal: stat cards, tables,
// line charts and the error dialog. Nothing here talks to the API.
package render

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("63")
	Subtle  = lipgloss.Color("240")
	Success = lipgloss.Color("42")
	Warning = lipgloss.Color("220")
	Danger  = lipgloss.Color("196")
	Muted   = lipgloss.Color("245")
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

var subtitleStyle = lipgloss.NewStyle().
	Foreground(Muted)

var cardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 2).
	Width(30)

var cardTitleStyle = lipgloss.NewStyle().
	Foreground(Muted)

var cardValueStyle = lipgloss.NewStyle().
	Bold(true)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	Padding(0, 1)

var cellStyle = lipgloss.NewStyle().
	Padding(0, 1)

var helpStyle = lipgloss.NewStyle().
	Foreground(Muted)

var dialogStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	Padding(1, 3)

// moodStyles colour each comment mood.
var moodStyles = map[string]lipgloss.Style{
	"excited": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	"loved":   lipgloss.NewStyle().Foreground(lipgloss.Color("211")),
	"happy":   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	"sad":     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	"thumbsy": lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
}

// Title renders a section heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Subtitle renders secondary text under a heading.
func Subtitle(s string) string {
	return subtitleStyle.Render(s)
}

// Help renders muted hint text.
func Help(s string) string {
	return helpStyle.Render(s)
}
