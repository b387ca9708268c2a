package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/logging"
)

// Identity headers set by the upstream gateway after it authenticates
// the caller. The service trusts them as-is.
const (
	HeaderOrgID    = "X-Org-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Identity resolves the gateway identity headers into a Principal and
// rejects requests that carry none. An absent role reads as member.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(r.Header.Get(HeaderOrgID))
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if orgID == "" || userID == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					Code:    "unauthenticated",
					Message: "identity headers are required",
				})
				return
			}

			role := application.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
			if role == "" {
				role = application.RoleMember
			}

			ctx := ContextWithPrincipal(r.Context(), application.Principal{
				UserID: userID,
				OrgID:  orgID,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager gates a route on a managing role. Reads and check-in
// stay open to every authenticated identity; everything that mutates
// batches or sessions goes through this.
func RequireManager(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || !principal.Role.CanManage() {
				responder.writeJSON(r.Context(), w, http.StatusForbidden, errorResponse{
					Code:    "forbidden",
					Message: "operation requires an operator or admin role",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a request-scoped logger to the context and
// writes one line at the start and end of every request. The request id
// comes from the chi RequestID middleware upstream of this one.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
