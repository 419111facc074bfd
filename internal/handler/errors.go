package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/service"
)

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		fields := make([]dto.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, dto.FieldError(f))
		}
		code := "VALIDATION_FAILED"
		if errors.Is(err, service.ErrInvalidMood) {
			code = "INVALID_MOOD"
		}
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Error:  "Invalid request body",
			Code:   code,
			Fields: fields,
		})
		return
	}

	var perr *cost.ParseError
	if errors.As(err, &perr) {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_CSV", perr.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrCommentNotFound):
		writeErrorJSON(w, http.StatusNotFound, "COMMENT_NOT_FOUND", "Comment not found")
	case errors.Is(err, service.ErrAdminUserNotFound):
		writeErrorJSON(w, http.StatusInternalServerError, "ADMIN_USER_NOT_FOUND", "Admin user not found in database")
	case errors.Is(err, service.ErrMissingAuthor):
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing admin identity")
	case errors.Is(err, datastore.ErrRefreshInProgress):
		writeErrorJSON(w, http.StatusConflict, "REFRESH_IN_PROGRESS", "A refresh is already running")
	case errors.Is(err, cost.ErrUnknownModel):
		writeErrorJSON(w, http.StatusUnprocessableEntity, "UNKNOWN_MODEL", err.Error())
	default:
		logger.ErrorContext(r.Context(), "internal_error",
			"error", err,
			"path", r.URL.Path,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
