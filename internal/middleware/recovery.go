package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gymii/dashboard/internal/errreport"
)

// Recoverer recovers from panics, reports them and returns a 500.
func Recoverer(logger *slog.Logger, reporter errreport.Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}

					requestID := GetRequestID(r.Context())
					logger.Error("panic recovered",
						slog.String("request_id", requestID),
						slog.Any("panic", rvr),
						slog.String("stack", string(debug.Stack())),
					)

					if reporter != nil {
						reporter.Report(r.Context(), errreport.NewEvent(
							"panic in "+r.Method+" "+r.URL.Path,
							fmt.Errorf("panic: %v", rvr),
						))
					}

					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
