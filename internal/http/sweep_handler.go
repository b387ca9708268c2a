package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/attendance-tracker/internal/application"
)

type sweeper interface {
	Run(ctx context.Context) (int, error)
}

// SweepHandler exposes the completion sweep as an endpoint, for
// operators who want to force a pass between scheduled runs.
type SweepHandler struct {
	sweeper   sweeper
	responder responder
	logger    *slog.Logger
}

func NewSweepHandler(sweeper sweeper, logger *slog.Logger) *SweepHandler {
	base := defaultLogger(logger)
	return &SweepHandler{sweeper: sweeper, responder: newResponder(base), logger: base}
}

func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sweeper == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "SweepHandler", "Run", "principal_id", principal.UserID)

	completed, err := h.sweeper.Run(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "completion sweep failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "completion sweep finished", "completed", completed)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sweepResponse{Completed: completed})
}

type sweepResponse struct {
	Completed int `json:"completed"`
}
