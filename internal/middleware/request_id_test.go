package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"client id kept", "dashctl-7f3a", true},
		{"newline rejected", "abc\ninjected=1", false},
		{"space rejected", "two words", false},
		{"too long rejected", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("X-Request-ID"); got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.keep {
				if seen != tt.incoming {
					t.Errorf("request id = %q, want %q", seen, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Errorf("request id = %q, want a generated uuid", seen)
			}
		})
	}
}

func TestGetTraceID_FallsBackToHeader(t *testing.T) {
	t.Parallel()

	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "4bf92f3577b34da6a3ce929d0e0e4736")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("GetTraceID() = %q", got)
	}
	if rec.Header().Get("X-Trace-ID") != got {
		t.Errorf("X-Trace-ID not echoed")
	}
	if GetTraceID(req.Context()) != "" {
		t.Error("bare context should have no trace id")
	}
}
