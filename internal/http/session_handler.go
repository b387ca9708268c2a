package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/session"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (session.Session, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (session.Session, error)
	CancelSession(ctx context.Context, principal application.Principal, sessionID, reason string) (session.Session, error)
	ReinstateSession(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error)
	CompleteSession(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error)
	RotateScanCode(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.SessionView, error)
	VisibleSessionsFor(ctx context.Context, params application.VisibleSessionsParams) (application.VisibleSessions, error)
	DayIndicators(ctx context.Context, params application.DayIndicatorsParams) (map[string]session.Indicator, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID).ErrorContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateDTO(req); fields != nil {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	created, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", created.ID).InfoContext(r.Context(), "session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(principal, created)})
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req sessionPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "session_id", sessionID).ErrorContext(r.Context(), "failed to decode session patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "session_id", sessionID)

	updated, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		Principal: principal,
		SessionID: sessionID,
		Patch:     req.toPatch(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(principal, updated)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	view, err := h.service.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionViewDTO(principal, view)})
}

// List serves two shapes of the same collection: with a batch filter it
// returns every session of that batch, otherwise it returns the
// display-filtered visible set for the requested day.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	if batchID := strings.TrimSpace(query.Get("batch")); batchID != "" {
		views, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{
			Principal: principal,
			BatchID:   batchID,
		})
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionViewDTOs(principal, views)})
		return
	}

	visible, err := h.service.VisibleSessionsFor(r.Context(), application.VisibleSessionsParams{
		Principal:    principal,
		SelectedDate: strings.TrimSpace(query.Get("date")),
		ShowPast:     parseBoolParam(query.Get("showPast")),
		Mine:         !parseBoolParam(query.Get("all")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{
		Sessions:       toSessionViewDTOs(principal, visible.Sessions),
		RemainingCount: visible.RemainingCount,
	})
}

func (h *SessionHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	fields := map[string]string{}
	year, err := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if err != nil || year < 1 {
		fields["year"] = "must be a positive integer"
	}
	month, err := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if err != nil || month < 1 || month > 12 {
		fields["month"] = "must be an integer between 1 and 12"
	}
	if len(fields) > 0 {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	indicators, err := h.service.DayIndicators(r.Context(), application.DayIndicatorsParams{
		Principal: principal,
		Year:      year,
		Month:     time.Month(month),
		Mine:      !parseBoolParam(query.Get("all")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, indicatorsResponse{Indicators: toIndicatorMap(indicators)})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	// The reason body is optional; an empty body cancels without one.
	var req cancelSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "session_id", sessionID).ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "session_id", sessionID)

	cancelled, err := h.service.CancelSession(r.Context(), principal, sessionID, strings.TrimSpace(req.Reason))
	if err != nil {
		logger.ErrorContext(r.Context(), "session cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(principal, cancelled)})
}

func (h *SessionHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "Reinstate", "session reinstated", func(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error) {
		return h.service.ReinstateSession(ctx, principal, sessionID)
	})
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "Complete", "session completed", func(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error) {
		return h.service.CompleteSession(ctx, principal, sessionID)
	})
}

func (h *SessionHandler) RotateScanCode(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "RotateScanCode", "scan code rotated", func(ctx context.Context, principal application.Principal, sessionID string) (session.Session, error) {
		return h.service.RotateScanCode(ctx, principal, sessionID)
	})
}

func (h *SessionHandler) lifecycleAction(w http.ResponseWriter, r *http.Request, operation, message string, action func(context.Context, application.Principal, string) (session.Session, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "session_id", sessionID)

	updated, err := action(r.Context(), principal, sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "session lifecycle change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), message)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(principal, updated)})
}

type sessionRequest struct {
	Title        string           `json:"title" validate:"required"`
	StartDate    string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string           `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime    string           `json:"startTime" validate:"required,datetime=15:04"`
	EndTime      string           `json:"endTime" validate:"omitempty,datetime=15:04"`
	SessionType  string           `json:"sessionType" validate:"required,oneof=PHYSICAL REMOTE HYBRID"`
	LocationSpec string           `json:"locationSpec"`
	RadiusMeters int              `json:"radiusMeters"`
	VirtualLink  string           `json:"virtualLink" validate:"omitempty,url"`
	Roster       []rosterEntryDTO `json:"roster" validate:"omitempty,dive"`
}

func (r sessionRequest) toInput() application.SessionInput {
	return application.SessionInput{
		Title:        strings.TrimSpace(r.Title),
		StartDate:    strings.TrimSpace(r.StartDate),
		EndDate:      strings.TrimSpace(r.EndDate),
		StartTime:    strings.TrimSpace(r.StartTime),
		EndTime:      strings.TrimSpace(r.EndTime),
		SessionType:  r.SessionType,
		LocationSpec: strings.TrimSpace(r.LocationSpec),
		RadiusMeters: r.RadiusMeters,
		VirtualLink:  strings.TrimSpace(r.VirtualLink),
		Roster:       toRosterInputs(r.Roster),
	}
}

type sessionPatchRequest struct {
	Title        nullable.Nullable[string]           `json:"title"`
	StartDate    nullable.Nullable[string]           `json:"startDate"`
	EndDate      nullable.Nullable[string]           `json:"endDate"`
	StartTime    nullable.Nullable[string]           `json:"startTime"`
	EndTime      nullable.Nullable[string]           `json:"endTime"`
	SessionType  nullable.Nullable[string]           `json:"sessionType"`
	LocationSpec nullable.Nullable[string]           `json:"locationSpec"`
	RadiusMeters nullable.Nullable[int]              `json:"radiusMeters"`
	VirtualLink  nullable.Nullable[string]           `json:"virtualLink"`
	Roster       nullable.Nullable[[]rosterEntryDTO] `json:"roster"`
}

func (r sessionPatchRequest) toPatch() application.SessionPatch {
	patch := application.SessionPatch{
		Title:        patchField(r.Title),
		StartDate:    patchField(r.StartDate),
		EndDate:      patchField(r.EndDate),
		StartTime:    patchField(r.StartTime),
		EndTime:      patchField(r.EndTime),
		SessionType:  patchField(r.SessionType),
		LocationSpec: patchField(r.LocationSpec),
		RadiusMeters: patchField(r.RadiusMeters),
		VirtualLink:  patchField(r.VirtualLink),
	}

	if r.Roster.IsSpecified() {
		if r.Roster.IsNull() {
			patch.Roster = application.Clear[[]application.RosterEntryInput]()
		} else {
			patch.Roster = application.Value(toRosterInputs(r.Roster.MustGet()))
		}
	}

	return patch
}

type cancelSessionRequest struct {
	Reason string `json:"reason"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions       []sessionDTO `json:"sessions"`
	RemainingCount int          `json:"remainingCount"`
}

type indicatorsResponse struct {
	Indicators map[string]string `json:"indicators"`
}

// sessionDTO is the wire shape shared by mutation responses and list
// views. Status and IsToday are view annotations; mutation responses
// leave them empty so clients re-fetch rather than trust a stale badge.
// ScanCode is rendered only for managing roles.
type sessionDTO struct {
	ID                 string        `json:"id"`
	BatchID            string        `json:"batchId,omitempty"`
	Title              string        `json:"title"`
	StartDate          string        `json:"startDate"`
	EndDate            string        `json:"endDate,omitempty"`
	StartTime          string        `json:"startTime"`
	EndTime            string        `json:"endTime,omitempty"`
	SessionType        string        `json:"sessionType"`
	LocationSpec       string        `json:"locationSpec,omitempty"`
	RadiusMeters       int           `json:"radiusMeters,omitempty"`
	VirtualLink        string        `json:"virtualLink,omitempty"`
	Roster             []attendeeDTO `json:"roster"`
	ScanCode           string        `json:"scanCode,omitempty"`
	Cancelled          bool          `json:"cancelled,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	Completed          bool          `json:"completed,omitempty"`
	Status             string        `json:"status,omitempty"`
	IsToday            bool          `json:"isToday,omitempty"`
	CreatedAt          string        `json:"createdAt"`
	UpdatedAt          string        `json:"updatedAt"`
}

func toSessionDTO(principal application.Principal, sess session.Session) sessionDTO {
	dto := sessionDTO{
		ID:                 sess.ID,
		BatchID:            sess.BatchID,
		Title:              sess.Title,
		StartDate:          sess.StartDate,
		EndDate:            sess.EndDate,
		StartTime:          sess.StartTime,
		EndTime:            sess.EndTime,
		SessionType:        string(sess.Type),
		LocationSpec:       sess.LocationSpec,
		RadiusMeters:       sess.RadiusMeters,
		VirtualLink:        sess.VirtualLink,
		Roster:             toAttendeeDTOs(sess.Roster),
		Cancelled:          sess.Cancelled,
		CancellationReason: sess.CancellationReason,
		Completed:          sess.Completed,
		CreatedAt:          formatInstant(sess.CreatedAt),
		UpdatedAt:          formatInstant(sess.UpdatedAt),
	}
	if principal.Role.CanManage() {
		dto.ScanCode = sess.ScanCode
	}
	return dto
}

func toSessionViewDTO(principal application.Principal, view application.SessionView) sessionDTO {
	dto := toSessionDTO(principal, view.Session)
	dto.Status = string(view.Status)
	dto.IsToday = view.IsToday
	return dto
}

func toSessionViewDTOs(principal application.Principal, views []application.SessionView) []sessionDTO {
	if len(views) == 0 {
		return nil
	}
	out := make([]sessionDTO, 0, len(views))
	for _, view := range views {
		out = append(out, toSessionViewDTO(principal, view))
	}
	return out
}

func toIndicatorMap(indicators map[string]session.Indicator) map[string]string {
	if len(indicators) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(indicators))
	for date, indicator := range indicators {
		out[date] = string(indicator)
	}
	return out
}
