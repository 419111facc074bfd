// Package errreport routes unhandled errors to an injected reporter.
package errreport

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Class tells a reporter whether the user may dismiss the error and carry on.
type Class int

const (
	Recoverable Class = iota
	Critical
)

func (c Class) String() string {
	if c == Critical {
		return "critical"
	}
	return "recoverable"
}

// ErrInit marks failures while constructing the auth session or API client.
var ErrInit = errors.New("initialization failed")

// criticalMarkers are substrings that indicate the auth provider or its
// configuration is broken.
var criticalMarkers = []string{
	"Failed to construct 'URL'",
	"Supabase",
	"Authentication",
}

// Classify marks init failures and auth provider errors as Critical.
func Classify(err error) Class {
	if err == nil {
		return Recoverable
	}
	if errors.Is(err, ErrInit) {
		return Critical
	}
	msg := err.Error()
	for _, m := range criticalMarkers {
		if strings.Contains(msg, m) {
			return Critical
		}
	}
	return Recoverable
}

// Event is one reported error.
type Event struct {
	Title string
	Err   error
	Class Class
}

// Reporter receives every error nobody else handled.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// NewEvent builds an Event classified by Classify.
func NewEvent(title string, err error) Event {
	return Event{Title: title, Err: err, Class: Classify(err)}
}

// LogReporter writes events to a slog.Logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter logging under component "errreport".
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "errreport")}
}

// Report logs the event at error level.
func (r *LogReporter) Report(ctx context.Context, ev Event) {
	r.logger.ErrorContext(ctx, ev.Title,
		"error", ev.Err,
		"class", ev.Class.String(),
	)
}

// Multi fans an event out to several reporters.
type Multi []Reporter

// Report forwards ev to each reporter in order.
func (m Multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Report(ctx, ev)
	}
}

// Memory keeps events for inspection in tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Report stores ev.
func (m *Memory) Report(_ context.Context, ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// Events returns a copy of the stored events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
