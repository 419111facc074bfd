package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/repository"
)

// Comment service errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrAdminUserNotFound = errors.New("admin user not found in database")
	ErrMissingAuthor     = errors.New("missing author identity")
)

// CommentStore is the persistence the comment service needs.
type CommentStore interface {
	GetSubscriptionProfile(ctx context.Context, id string) (*model.User, error)
	GetAdminUserByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	ListComments(ctx context.Context, userID string) ([]model.AdminComment, error)
	CreateComment(ctx context.Context, c *model.AdminComment) error
	UpdateComment(ctx context.Context, id int64, upd repository.CommentUpdate) (*model.AdminComment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// AdminCache memoises admin rows resolved by email. A nil, nil Get is a miss.
type AdminCache interface {
	GetAdminUser(ctx context.Context, email string) (*model.AdminUser, error)
	SetAdminUser(ctx context.Context, u *model.AdminUser) error
}

// CommentService handles admin comment business logic.
type CommentService struct {
	store    CommentStore
	admins   AdminCache
	metrics  metrics.Recorder
	logger   *slog.Logger
	validate *validator.Validate
}

// NewCommentService creates a new CommentService.
func NewCommentService(store CommentStore, recorder metrics.Recorder, logger *slog.Logger) *CommentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		store:    store,
		metrics:  recorder,
		logger:   logger.With("component", "comment_service"),
		validate: newValidator(),
	}
}

// WithAdminCache resolves comment authors through c before the store.
func (s *CommentService) WithAdminCache(c AdminCache) *CommentService {
	s.admins = c
	return s
}

// CreateCommentInput defines input for creating a comment.
type CreateCommentInput struct {
	UserID string  `json:"user_id" validate:"required"`
	Text   string  `json:"text" validate:"required,max=5000"`
	Mood   *string `json:"mood" validate:"omitnil,oneof=excited loved happy sad thumbsy"`
}

// UpdateCommentInput defines a partial update. Nil fields stay unchanged;
// ClearMood removes the mood.
type UpdateCommentInput struct {
	Text      *string `json:"text" validate:"omitnil,min=1,max=5000"`
	Mood      *string `json:"mood" validate:"omitnil,oneof=excited loved happy sad thumbsy"`
	ClearMood bool    `json:"-"`
}

// List returns the comments attached to a user, newest first.
func (s *CommentService) List(ctx context.Context, userID string) ([]model.AdminComment, error) {
	comments, err := s.store.ListComments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Create attaches a new comment to a user, authored by the admin with authorEmail.
func (s *CommentService) Create(ctx context.Context, authorEmail string, input CreateCommentInput) (*model.AdminComment, error) {
	input.Mood = blankToNil(input.Mood)
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}
	if authorEmail == "" {
		return nil, ErrMissingAuthor
	}

	if _, err := s.store.GetSubscriptionProfile(ctx, input.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	author, err := s.author(ctx, authorEmail)
	if err != nil {
		return nil, err
	}

	comment := &model.AdminComment{
		UserID:   input.UserID,
		AuthorID: &author.ID,
		Text:     input.Text,
		Mood:     toMood(input.Mood),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.metrics.IncCommentCreated()
	s.logger.InfoContext(ctx, "comment created",
		"comment_id", comment.ID,
		"user_id", comment.UserID,
		"author_id", author.ID,
	)
	return comment, nil
}

func (s *CommentService) author(ctx context.Context, email string) (*model.AdminUser, error) {
	if s.admins != nil {
		if u, err := s.admins.GetAdminUser(ctx, email); err == nil && u != nil {
			return u, nil
		}
	}

	u, err := s.store.GetAdminUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminUserNotFound) {
			s.logger.WarnContext(ctx, "admin has no user row", "email", email)
			return nil, ErrAdminUserNotFound
		}
		return nil, fmt.Errorf("lookup author: %w", err)
	}

	if s.admins != nil {
		if err := s.admins.SetAdminUser(ctx, u); err != nil {
			s.logger.WarnContext(ctx, "failed to cache admin user", "error", err)
		}
	}
	return u, nil
}

// Update applies a partial update to a comment.
func (s *CommentService) Update(ctx context.Context, id int64, input UpdateCommentInput) (*model.AdminComment, error) {
	if input.Mood != nil && *input.Mood == "" {
		input.Mood = nil
		input.ClearMood = true
	}
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}

	upd := repository.CommentUpdate{
		Text:      input.Text,
		Mood:      toMood(input.Mood),
		ClearMood: input.ClearMood,
	}
	comment, err := s.store.UpdateComment(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}

	if !upd.IsEmpty() {
		s.metrics.IncCommentUpdated()
	}
	return comment, nil
}

// Delete removes a comment.
func (s *CommentService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteComment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	s.metrics.IncCommentDeleted()
	s.logger.InfoContext(ctx, "comment deleted", "comment_id", id)
	return nil
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func toMood(s *string) *model.Mood {
	if s == nil {
		return nil
	}
	m := model.Mood(*s)
	return &m
}
