package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gymii/dashboard/internal/model"
)

// ErrCommentNotFound is returned when no comment matches an id.
var ErrCommentNotFound = errors.New("comment not found")

const commentColumns = `id, user_id, author_id, text, mood, created_at, updated_at`

// CommentUpdate holds the fields a partial update may change.
// Nil fields are left untouched. ClearMood sets mood to NULL and wins over Mood.
type CommentUpdate struct {
	Text      *string
	Mood      *model.Mood
	ClearMood bool
}

// IsEmpty reports whether the update changes nothing.
func (u CommentUpdate) IsEmpty() bool {
	return u.Text == nil && u.Mood == nil && !u.ClearMood
}

// ListComments returns a user's comments, newest first.
func (r *Repository) ListComments(ctx context.Context, userID string) ([]model.AdminComment, error) {
	query := `SELECT ` + commentColumns + ` FROM admin_comment WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	comments := []model.AdminComment{}
	err := r.observe(ctx, "list_comments", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanComment(rows)
			if err != nil {
				return err
			}
			comments = append(comments, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

// GetComment retrieves a comment by id.
func (r *Repository) GetComment(ctx context.Context, id int64) (*model.AdminComment, error) {
	query := `SELECT ` + commentColumns + ` FROM admin_comment WHERE id = $1`

	var c *model.AdminComment
	err := r.observe(ctx, "get_comment", func(ctx context.Context) error {
		var err error
		c, err = scanComment(r.pool.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return c, nil
}

// CreateComment inserts c and fills its id and created_at.
func (r *Repository) CreateComment(ctx context.Context, c *model.AdminComment) error {
	query := `
		INSERT INTO admin_comment (user_id, author_id, text, mood)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.observe(ctx, "create_comment", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, c.UserID, c.AuthorID, c.Text, c.Mood).Scan(&c.ID, &c.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// UpdateComment applies a partial update and returns the stored row.
func (r *Repository) UpdateComment(ctx context.Context, id int64, upd CommentUpdate) (*model.AdminComment, error) {
	if upd.IsEmpty() {
		return r.GetComment(ctx, id)
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if upd.Text != nil {
		args = append(args, *upd.Text)
		sets = append(sets, fmt.Sprintf("text = $%d", len(args)))
	}
	switch {
	case upd.ClearMood:
		sets = append(sets, "mood = NULL")
	case upd.Mood != nil:
		args = append(args, *upd.Mood)
		sets = append(sets, fmt.Sprintf("mood = $%d", len(args)))
	}

	query := `UPDATE admin_comment SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + commentColumns

	var c *model.AdminComment
	err := r.observe(ctx, "update_comment", func(ctx context.Context) error {
		var err error
		c, err = scanComment(r.pool.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return c, nil
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id int64) error {
	query := `DELETE FROM admin_comment WHERE id = $1`

	var affected int64
	err := r.observe(ctx, "delete_comment", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, query, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if affected == 0 {
		return ErrCommentNotFound
	}

	return nil
}

func scanComment(row pgx.Row) (*model.AdminComment, error) {
	var (
		c    model.AdminComment
		mood *string
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AuthorID,
		&c.Text,
		&mood,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mood != nil {
		m := model.Mood(*mood)
		c.Mood = &m
	}
	return &c, nil
}
