package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/service"
)

// UserReader is the user side of the admin API.
type UserReader interface {
	ListAdminUsers(ctx context.Context) ([]model.AdminUser, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Search(term string, page, size int) paging.Page[model.User]
	Sessions(ctx context.Context, userID string, page, size int) (paging.Page[model.ActivitySession], error)
}

// CommentManager is the comment side of the admin API.
type CommentManager interface {
	List(ctx context.Context, userID string) ([]model.AdminComment, error)
	Create(ctx context.Context, authorEmail string, input service.CreateCommentInput) (*model.AdminComment, error)
	Update(ctx context.Context, id int64, input service.UpdateCommentInput) (*model.AdminComment, error)
	Delete(ctx context.Context, id int64) error
}

// AdminHandler serves the admin-only user and comment endpoints.
type AdminHandler struct {
	users    UserReader
	comments CommentManager
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users UserReader, comments CommentManager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:    users,
		comments: comments,
		logger:   logger.With("component", "handler.admin"),
	}
}

// ListUsers handles GET /api/admin/.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAdminUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

// SearchUsers handles GET /api/admin/users?q=&page=&page_size=.
func (h *AdminHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	size := queryInt(q.Get("page_size"), paging.DefaultPageSize)

	writeJSON(w, http.StatusOK, h.users.Search(q.Get("q"), page, size))
}

// GetUser handles GET /api/admin/{userID}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Sessions handles GET /api/admin/{userID}/sessions?page=.
func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	size := queryInt(q.Get("page_size"), paging.SessionsPageSize)

	sessions, err := h.users.Sessions(r.Context(), chi.URLParam(r, "userID"), page, size)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ListComments handles GET /api/admin/{userID}/comments.
func (h *AdminHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

// CreateComment handles POST /api/admin/{userID}/comments.
func (h *AdminHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	comment, err := h.comments.Create(r.Context(), auth.EmailFromContext(r.Context()), service.CreateCommentInput{
		UserID: chi.URLParam(r, "userID"),
		Text:   req.Text,
		Mood:   req.Mood,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// UpdateComment handles PUT /api/admin/comments/{commentID}.
func (h *AdminHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.UpdateCommentInput{Text: req.Text}
	if req.Mood.Set {
		input.Mood = req.Mood.Value
		input.ClearMood = req.Mood.Value == nil
	}

	comment, err := h.comments.Update(r.Context(), id, input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// DeleteComment handles DELETE /api/admin/comments/{commentID}.
func (h *AdminHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}

	if err := h.comments.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Comment deleted successfully"})
}

// Me handles GET /api/admin/me.
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	email := auth.EmailFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.MeResponse{
		Email:   email,
		Message: "Authenticated as admin: " + email,
	})
}

func commentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_COMMENT_ID", "Comment id must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt parses a positive integer query value, falling back to def.
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
