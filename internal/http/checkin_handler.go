package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/attendance-tracker/internal/application"
)

type checkInService interface {
	CheckIn(ctx context.Context, params application.CheckInParams) (application.CheckIn, error)
	ListCheckIns(ctx context.Context, principal application.Principal, sessionID string) ([]application.CheckIn, error)
}

type CheckInHandler struct {
	service   checkInService
	responder responder
	logger    *slog.Logger
}

func NewCheckInHandler(service checkInService, logger *slog.Logger) *CheckInHandler {
	base := defaultLogger(logger)
	return &CheckInHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CheckInHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CheckInHandler", operation, attrs...)
}

// Create records one scan attempt for the calling identity. The scan
// code comes from the QR rendered on the session screen; physical
// attendees also submit the position their device reported.
func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "session_id", sessionID).ErrorContext(r.Context(), "failed to decode check-in request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateDTO(req); fields != nil {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "session_id", sessionID)

	checkIn, err := h.service.CheckIn(r.Context(), application.CheckInParams{
		Principal: principal,
		SessionID: sessionID,
		ScanCode:  strings.TrimSpace(req.ScanCode),
		Position:  req.Position.toPosition(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "check-in refused", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("check_in_id", checkIn.ID, "mode", string(checkIn.Mode), "late", checkIn.Late).InfoContext(r.Context(), "check-in recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, checkInResponse{CheckIn: toCheckInDTO(checkIn)})
}

func (h *CheckInHandler) List(w http.ResponseWriter, r *http.Request) {
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

	checkIns, err := h.service.ListCheckIns(r.Context(), principal, sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCheckInsResponse{CheckIns: toCheckInDTOs(checkIns)})
}

type checkInRequest struct {
	ScanCode string       `json:"scanCode" validate:"required"`
	Position *positionDTO `json:"position"`
}

type positionDTO struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

func (p *positionDTO) toPosition() *application.Position {
	if p == nil {
		return nil
	}
	return &application.Position{Latitude: p.Latitude, Longitude: p.Longitude}
}

type checkInResponse struct {
	CheckIn checkInDTO `json:"checkIn"`
}

type listCheckInsResponse struct {
	CheckIns []checkInDTO `json:"checkIns"`
}

type checkInDTO struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	Mode        string `json:"mode"`
	Late        bool   `json:"late"`
	CheckedInAt string `json:"checkedInAt"`
}

func toCheckInDTO(checkIn application.CheckIn) checkInDTO {
	return checkInDTO{
		ID:          checkIn.ID,
		SessionID:   checkIn.SessionID,
		UserID:      checkIn.UserID,
		Mode:        string(checkIn.Mode),
		Late:        checkIn.Late,
		CheckedInAt: formatInstant(checkIn.CheckedInAt),
	}
}

func toCheckInDTOs(checkIns []application.CheckIn) []checkInDTO {
	if len(checkIns) == 0 {
		return nil
	}
	out := make([]checkInDTO, 0, len(checkIns))
	for _, checkIn := range checkIns {
		out = append(out, toCheckInDTO(checkIn))
	}
	return out
}
