package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/session"
)

type batchService interface {
	CreateBatch(ctx context.Context, params application.CreateBatchParams) (application.Batch, []session.Session, error)
	UpdateBatch(ctx context.Context, params application.UpdateBatchParams) (application.Batch, error)
	GetBatch(ctx context.Context, principal application.Principal, batchID string) (application.Batch, error)
	GetBatchBySlug(ctx context.Context, principal application.Principal, slug string) (application.Batch, error)
	ListBatches(ctx context.Context, principal application.Principal) ([]application.Batch, error)
}

type BatchHandler struct {
	service   batchService
	responder responder
	logger    *slog.Logger
}

func NewBatchHandler(service batchService, logger *slog.Logger) *BatchHandler {
	base := defaultLogger(logger)
	return &BatchHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BatchHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BatchHandler", operation, attrs...)
}

func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID).ErrorContext(r.Context(), "failed to decode batch request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateDTO(req); fields != nil {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	descriptor, err := req.descriptor()
	if err != nil {
		var descErr *recurrence.DescriptorError
		if errors.As(err, &descErr) {
			h.responder.writeFieldErrors(r.Context(), w, descErr.Fields)
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	batch, sessions, err := h.service.CreateBatch(r.Context(), application.CreateBatchParams{
		Principal: principal,
		Input:     req.toInput(descriptor),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "batch creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("batch_id", batch.ID, "sessions", len(sessions)).InfoContext(r.Context(), "batch created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createBatchResponse{
		Batch:        toBatchDTO(batch),
		SessionCount: len(sessions),
	})
}

func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBatchID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req batchPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "batch_id", batchID).ErrorContext(r.Context(), "failed to decode batch patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "batch_id", batchID)

	batch, err := h.service.UpdateBatch(r.Context(), application.UpdateBatchParams{
		Principal: principal,
		BatchID:   batchID,
		Patch:     req.toPatch(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "batch update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "batch updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, batchResponse{Batch: toBatchDTO(batch)})
}

// Get resolves the path segment as a batch id first and falls back to
// the slug, so stable share links can use either.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBatchID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	batch, err := h.service.GetBatch(r.Context(), principal, batchID)
	if errors.Is(err, application.ErrNotFound) {
		batch, err = h.service.GetBatchBySlug(r.Context(), principal, batchID)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, batchResponse{Batch: toBatchDTO(batch)})
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	batches, err := h.service.ListBatches(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBatchesResponse{Batches: toBatchDTOs(batches)})
}

type batchRequest struct {
	Title        string           `json:"title" validate:"required"`
	Frequency    string           `json:"frequency" validate:"required_without=Rule,omitempty,oneof=ONE_TIME DAILY WEEKLY MONTHLY RANDOM"`
	Rule         string           `json:"rrule" validate:"excluded_with=Frequency"`
	StartDate    string           `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string           `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	WeeklyDays   []string         `json:"weeklyDays" validate:"omitempty,dive,oneof=SUNDAY MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	CustomDates  []string         `json:"customDates" validate:"omitempty,dive,datetime=2006-01-02"`
	StartTime    string           `json:"startTime" validate:"required,datetime=15:04"`
	EndTime      string           `json:"endTime" validate:"required,datetime=15:04"`
	SessionType  string           `json:"sessionType" validate:"required,oneof=PHYSICAL REMOTE HYBRID"`
	LocationSpec string           `json:"locationSpec"`
	RadiusMeters int              `json:"radiusMeters"`
	VirtualLink  string           `json:"virtualLink" validate:"omitempty,url"`
	Roster       []rosterEntryDTO `json:"roster" validate:"omitempty,dive"`
}

// descriptor builds the recurrence descriptor from either the discrete
// frequency fields or, when provided, an RFC 5545 rrule value.
func (r batchRequest) descriptor() (recurrence.Descriptor, error) {
	if rule := strings.TrimSpace(r.Rule); rule != "" {
		return recurrence.FromRRule(rule, strings.TrimSpace(r.StartTime), strings.TrimSpace(r.EndTime))
	}
	frequency, _ := recurrence.ParseFrequency(r.Frequency)
	return recurrence.Descriptor{
		Frequency:   frequency,
		StartDate:   strings.TrimSpace(r.StartDate),
		EndDate:     strings.TrimSpace(r.EndDate),
		Weekdays:    parseWeekdays(r.WeeklyDays),
		CustomDates: append([]string(nil), r.CustomDates...),
		StartTime:   strings.TrimSpace(r.StartTime),
		EndTime:     strings.TrimSpace(r.EndTime),
	}, nil
}

func (r batchRequest) toInput(descriptor recurrence.Descriptor) application.BatchInput {
	return application.BatchInput{
		Title:        strings.TrimSpace(r.Title),
		Descriptor:   descriptor,
		SessionType:  r.SessionType,
		LocationSpec: strings.TrimSpace(r.LocationSpec),
		RadiusMeters: r.RadiusMeters,
		VirtualLink:  strings.TrimSpace(r.VirtualLink),
		Roster:       toRosterInputs(r.Roster),
	}
}

type batchPatchRequest struct {
	Title        nullable.Nullable[string]           `json:"title"`
	Frequency    nullable.Nullable[string]           `json:"frequency"`
	StartDate    nullable.Nullable[string]           `json:"startDate"`
	EndDate      nullable.Nullable[string]           `json:"endDate"`
	WeeklyDays   nullable.Nullable[[]string]         `json:"weeklyDays"`
	CustomDates  nullable.Nullable[[]string]         `json:"customDates"`
	StartTime    nullable.Nullable[string]           `json:"startTime"`
	EndTime      nullable.Nullable[string]           `json:"endTime"`
	SessionType  nullable.Nullable[string]           `json:"sessionType"`
	LocationSpec nullable.Nullable[string]           `json:"locationSpec"`
	RadiusMeters nullable.Nullable[int]              `json:"radiusMeters"`
	VirtualLink  nullable.Nullable[string]           `json:"virtualLink"`
	Roster       nullable.Nullable[[]rosterEntryDTO] `json:"roster"`
}

func (r batchPatchRequest) toPatch() application.BatchPatch {
	patch := application.BatchPatch{
		Title:        patchField(r.Title),
		Frequency:    patchField(r.Frequency),
		StartDate:    patchField(r.StartDate),
		EndDate:      patchField(r.EndDate),
		CustomDates:  patchField(r.CustomDates),
		StartTime:    patchField(r.StartTime),
		EndTime:      patchField(r.EndTime),
		SessionType:  patchField(r.SessionType),
		LocationSpec: patchField(r.LocationSpec),
		RadiusMeters: patchField(r.RadiusMeters),
		VirtualLink:  patchField(r.VirtualLink),
	}

	if r.WeeklyDays.IsSpecified() {
		if r.WeeklyDays.IsNull() {
			patch.Weekdays = application.Clear[[]time.Weekday]()
		} else {
			patch.Weekdays = application.Value(parseWeekdays(r.WeeklyDays.MustGet()))
		}
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

type batchResponse struct {
	Batch batchDTO `json:"batch"`
}

type createBatchResponse struct {
	Batch        batchDTO `json:"batch"`
	SessionCount int      `json:"sessionCount"`
}

type listBatchesResponse struct {
	Batches []batchDTO `json:"batches"`
}

type batchDTO struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	Frequency    string        `json:"frequency"`
	StartDate    string        `json:"startDate,omitempty"`
	EndDate      string        `json:"endDate,omitempty"`
	WeeklyDays   []string      `json:"weeklyDays,omitempty"`
	CustomDates  []string      `json:"customDates,omitempty"`
	StartTime    string        `json:"startTime"`
	EndTime      string        `json:"endTime"`
	RRule        string        `json:"rrule,omitempty"`
	SessionType  string        `json:"sessionType"`
	LocationSpec string        `json:"locationSpec,omitempty"`
	RadiusMeters int           `json:"radiusMeters,omitempty"`
	VirtualLink  string        `json:"virtualLink,omitempty"`
	Roster       []attendeeDTO `json:"roster"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

func toBatchDTO(batch application.Batch) batchDTO {
	return batchDTO{
		ID:           batch.ID,
		Title:        batch.Title,
		Slug:         batch.Slug,
		Frequency:    batch.Descriptor.Frequency.String(),
		StartDate:    batch.Descriptor.StartDate,
		EndDate:      batch.Descriptor.EndDate,
		WeeklyDays:   weekdayWireNames(batch.Descriptor.Weekdays),
		CustomDates:  append([]string(nil), batch.Descriptor.CustomDates...),
		StartTime:    batch.Descriptor.StartTime,
		EndTime:      batch.Descriptor.EndTime,
		RRule:        ruleStringOrEmpty(batch.Descriptor),
		SessionType:  string(batch.SessionType),
		LocationSpec: batch.LocationSpec,
		RadiusMeters: batch.RadiusMeters,
		VirtualLink:  batch.VirtualLink,
		Roster:       toAttendeeDTOs(batch.Roster),
		CreatedAt:    formatInstant(batch.CreatedAt),
		UpdatedAt:    formatInstant(batch.UpdatedAt),
	}
}

// ruleStringOrEmpty renders the descriptor's RFC 5545 form when it has
// one. One-time batches do not, so the DTO field stays empty for them.
func ruleStringOrEmpty(d recurrence.Descriptor) string {
	rule, err := d.RuleString()
	if err != nil {
		return ""
	}
	return rule
}

func toBatchDTOs(batches []application.Batch) []batchDTO {
	if len(batches) == 0 {
		return nil
	}
	out := make([]batchDTO, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchDTO(batch))
	}
	return out
}
