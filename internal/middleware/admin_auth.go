package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/model"
)

// Client-facing auth failure messages.
const (
	msgMissingHeader = "Authorization header is missing or invalid"
	msgServerConfig  = "Server configuration error"
	msgNotAdmin      = "Access denied. Your email is not authorized."
	msgTokenExpired  = "Token has expired"
	msgInvalidToken  = "Invalid token"
)

// Authenticator turns a bearer token into an admin identity.
type Authenticator interface {
	Authenticate(token string) (*model.AuthContext, error)
}

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger   *slog.Logger
	Verifier Authenticator
}

// AdminAuth requires a valid admin bearer token and injects the identity
// into the request context.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msgMissingHeader)
				return
			}

			ac, err := cfg.Verifier.Authenticate(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingSecret):
					cfg.Logger.Error("jwt secret not configured",
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "SERVER_CONFIGURATION", msgServerConfig)
				case errors.Is(err, auth.ErrNotAdmin):
					logAuthFailure(cfg.Logger, r, "not_admin")
					writeError(w, http.StatusForbidden, "FORBIDDEN", msgNotAdmin)
				case errors.Is(err, auth.ErrTokenExpired):
					logAuthFailure(cfg.Logger, r, "expired")
					writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", msgTokenExpired)
				default:
					logAuthFailure(cfg.Logger, r, "invalid_token")
					writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", msgInvalidToken)
				}
				return
			}

			setLogAdmin(r.Context(), ac.Email)
			cfg.Logger.Debug("admin authenticated",
				slog.String("email", ac.Email),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), ac)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", getClientIP(r)),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
