package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Batches  *BatchHandler
	Sessions *SessionHandler
	CheckIns *CheckInHandler
	Feed     *FeedHandler
	Sweep    *SweepHandler
	Logger   *slog.Logger
}

// NewRouter assembles the HTTP surface. Everything under /api/v1
// requires the gateway identity headers; mutating routes additionally
// require a managing role. The health probe stays outside both.
func NewRouter(deps RouterDeps) http.Handler {
	logger := defaultLogger(deps.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Identity(logger))
		manage := RequireManager(logger)

		r.Route("/batches", func(r chi.Router) {
			r.With(manage).Post("/", deps.Batches.Create)
			r.Get("/", deps.Batches.List)
			r.Get("/{batchID}", deps.Batches.Get)
			r.With(manage).Patch("/{batchID}", deps.Batches.Update)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(manage).Post("/", deps.Sessions.Create)
			r.Get("/", deps.Sessions.List)
			// Static before the id wildcard so "indicators" never
			// resolves as a session id.
			r.Get("/indicators", deps.Sessions.Indicators)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", deps.Sessions.Get)
				r.With(manage).Patch("/", deps.Sessions.Update)
				r.With(manage).Post("/cancel", deps.Sessions.Cancel)
				r.With(manage).Post("/reinstate", deps.Sessions.Reinstate)
				r.With(manage).Post("/complete", deps.Sessions.Complete)
				r.With(manage).Post("/scan-code", deps.Sessions.RotateScanCode)
				r.Post("/check-in", deps.CheckIns.Create)
				r.Get("/check-ins", deps.CheckIns.List)
			})
		})

		r.Get("/users/{userID}/sessions.ics", deps.Feed.Serve)
		r.With(manage).Post("/sweep", deps.Sweep.Run)
	})

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}
