package model

import "time"

// Mood is an optional reaction attached to an admin comment.
type Mood string

const (
	MoodExcited Mood = "excited"
	MoodLoved   Mood = "loved"
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
	MoodThumbsy Mood = "thumbsy"
)

// Moods lists every accepted mood in display order.
var Moods = []Mood{MoodExcited, MoodLoved, MoodHappy, MoodSad, MoodThumbsy}

// IsValid checks if the mood is one of the known values.
func (m Mood) IsValid() bool {
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

// Emoji returns the glyph shown next to a comment.
func (m Mood) Emoji() string {
	switch m {
	case MoodExcited:
		return "🤩"
	case MoodLoved:
		return "😍"
	case MoodHappy:
		return "😊"
	case MoodSad:
		return "😢"
	case MoodThumbsy:
		return "👍"
	default:
		return ""
	}
}

// AdminComment is a note an admin leaves on a user record.
type AdminComment struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	AuthorID  *int64     `json:"author_id"`
	Text      string     `json:"text"`
	Mood      *Mood      `json:"mood"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
