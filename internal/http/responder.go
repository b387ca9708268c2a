package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/logging"
)

var (
	errBadRequestBody   = errors.New("malformed request body")
	errInvalidBatchID   = errors.New("batch id is required")
	errInvalidSessionID = errors.New("session id is required")
	errInvalidUserID    = errors.New("user id is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) writeFieldErrors(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		Code:    "validation",
		Message: "validation failed",
		Errors:  fields,
	})
}

// handleServiceError translates application errors into responses:
// validation failures carry their field map as a 422, missing resources
// read as 404, role refusals as 403, and the lifecycle guards (ended,
// cancelled, wrong day, duplicate scan and friends) as 409.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	code := application.ErrorKind(err)

	switch {
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			Code:    code,
			Message: "operation requires an operator or admin role",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			Code:    code,
			Message: "resource not found",
		})
	case isConflict(err):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Code:    code,
			Message: conflictMessage(err),
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeFieldErrors(ctx, w, vErr.FieldErrors)
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func isConflict(err error) bool {
	for _, sentinel := range []error{
		application.ErrSessionEnded,
		application.ErrSessionCancelled,
		application.ErrSessionCompleted,
		application.ErrScanWindowClosed,
		application.ErrNotOnRoster,
		application.ErrAlreadyCheckedIn,
		application.ErrScanCodeMismatch,
		application.ErrOutsideGeofence,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, application.ErrSessionEnded):
		return "session has already ended"
	case errors.Is(err, application.ErrSessionCancelled):
		return "session is cancelled"
	case errors.Is(err, application.ErrSessionCompleted):
		return "session is already completed"
	case errors.Is(err, application.ErrScanWindowClosed):
		return "check-in is only accepted on the session day"
	case errors.Is(err, application.ErrNotOnRoster):
		return "user is not on the session roster"
	case errors.Is(err, application.ErrAlreadyCheckedIn):
		return "already checked in"
	case errors.Is(err, application.ErrScanCodeMismatch):
		return "scan code is no longer valid"
	case errors.Is(err, application.ErrOutsideGeofence):
		return "position is outside the session geofence"
	default:
		return "request conflicts with the session state"
	}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation failed"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
