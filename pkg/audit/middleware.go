package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/modelrisk/validation-workflow/pkg/authz"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// outcomeFromStatus maps an HTTP status code to an audit outcome.
func outcomeFromStatus(status int) string {
	switch {
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return "denied"
	case status >= 400:
		return "failure"
	default:
		return "success"
	}
}

// Middleware records an audit event for every mutating HTTP request
// (POST, PUT, PATCH, DELETE). Read requests pass through unrecorded.
// Domain operations additionally emit their own entity-level events; this
// layer captures the request envelope (path, actor, status).
func Middleware(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(capture, r)

			actor := "anonymous"
			if id, ok := authz.IdentityFromContext(r.Context()); ok {
				actor = id.User
			}

			event := &EventRecord{
				EntityType: "http_request",
				EntityID:   r.URL.Path,
				Action:     r.Method + " " + r.URL.Path,
				Actor:      actor,
				Outcome:    outcomeFromStatus(capture.statusCode),
				RequestID:  middleware.GetReqID(r.Context()),
				StatusCode: capture.statusCode,
			}
			if err := store.Append(event); err != nil {
				logger.Error("failed to record audit event",
					"path", r.URL.Path,
					"actor", actor,
					"error", err,
					"elapsed", time.Since(start).String())
			}
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
