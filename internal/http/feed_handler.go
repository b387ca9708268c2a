package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/ics"
	"github.com/example/attendance-tracker/internal/session"
)

type feedService interface {
	ListUserSessions(ctx context.Context, principal application.Principal, userID string) ([]application.SessionView, error)
}

// FeedHandler serves a user's sessions as an iCalendar document that
// calendar apps can subscribe to. Session windows are rendered in the
// organization's timezone.
type FeedHandler struct {
	service   feedService
	orgs      application.OrgDirectory
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewFeedHandler(service feedService, orgs application.OrgDirectory, location *time.Location, logger *slog.Logger) *FeedHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &FeedHandler{
		service:   service,
		orgs:      orgs,
		location:  location,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *FeedHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FeedHandler", operation, attrs...)
}

func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	views, err := h.service.ListUserSessions(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	sessions := make([]session.Session, 0, len(views))
	for _, view := range views {
		sessions = append(sessions, view.Session)
	}

	document := ics.Feed(sessions, h.orgLocation(r.Context(), principal.OrgID), ics.Options{
		Name:             "Sessions",
		IncludeCancelled: parseBoolParam(r.URL.Query().Get("includeCancelled")),
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, document); err != nil {
		h.log(r.Context(), "Serve", "user_id", userID).ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

func (h *FeedHandler) orgLocation(ctx context.Context, orgID string) *time.Location {
	if h.orgs != nil {
		if loc, err := h.orgs.OrgTimezone(ctx, orgID); err == nil && loc != nil {
			return loc
		}
	}
	return h.location
}
