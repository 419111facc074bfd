package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gymii/dashboard/internal/model"
)

func TestCommentUpdate_IsEmpty(t *testing.T) {
	t.Parallel()

	text := "note"
	mood := model.MoodHappy

	tests := []struct {
		name string
		upd  CommentUpdate
		want bool
	}{
		{"nothing", CommentUpdate{}, true},
		{"text only", CommentUpdate{Text: &text}, false},
		{"mood only", CommentUpdate{Mood: &mood}, false},
		{"both", CommentUpdate{Text: &text, Mood: &mood}, false},
		{"clear mood", CommentUpdate{ClearMood: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.upd.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullableStrings(t *testing.T) {
	t.Parallel()

	in := []sql.NullString{
		{String: "SPRING", Valid: true},
		{},
	}
	out := nullableStrings(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0] == nil || *out[0] != "SPRING" {
		t.Errorf("out[0] = %v, want SPRING", out[0])
	}
	if out[1] != nil {
		t.Errorf("out[1] = %v, want nil", *out[1])
	}

	// A NULL element empties the whole list.
	if got := model.NormalizePromoCodes(out); len(got) != 0 {
		t.Errorf("NormalizePromoCodes() = %v, want empty", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is not a unique violation")
	}
	if isUniqueViolation(errors.New("unique")) {
		t.Error("plain errors are not unique violations")
	}
}
