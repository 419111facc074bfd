package model

import (
	"sort"
	"time"
)

// ScreenVisit is one row of screen_durations_view.
type ScreenVisit struct {
	UserID           string     `json:"user_id"`
	SessionID        string     `json:"session_id"`
	Screen           string     `json:"screen"`
	ScreenStartTime  time.Time  `json:"screen_start_time"`
	ScreenEndTime    *time.Time `json:"screen_end_time"`
	DurationSeconds  float64    `json:"duration_seconds"`
	SessionStartTime time.Time  `json:"session_start_time"`
	SessionEndTime   *time.Time `json:"session_end_time"`
	VisitDate        string     `json:"visit_date"`
}

// ActivitySession groups the screen visits of one app session.
type ActivitySession struct {
	SessionID       string        `json:"session_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time"`
	DurationSeconds float64       `json:"duration_seconds"`
	Screens         []ScreenVisit `json:"screens"`
}

// GroupSessions folds screen visits into sessions, newest session first.
// Visits inside a session keep their start-time order.
func GroupSessions(visits []ScreenVisit) []ActivitySession {
	index := make(map[string]int)
	var sessions []ActivitySession

	for _, v := range visits {
		i, ok := index[v.SessionID]
		if !ok {
			index[v.SessionID] = len(sessions)
			sessions = append(sessions, ActivitySession{
				SessionID: v.SessionID,
				StartTime: v.SessionStartTime,
				EndTime:   v.SessionEndTime,
			})
			i = len(sessions) - 1
		}
		sessions[i].Screens = append(sessions[i].Screens, v)
		sessions[i].DurationSeconds += v.DurationSeconds
	}

	for i := range sessions {
		screens := sessions[i].Screens
		sort.SliceStable(screens, func(a, b int) bool {
			return screens[a].ScreenStartTime.Before(screens[b].ScreenStartTime)
		})
	}

	sort.SliceStable(sessions, func(a, b int) bool {
		return sessions[a].StartTime.After(sessions[b].StartTime)
	})

	return sessions
}
