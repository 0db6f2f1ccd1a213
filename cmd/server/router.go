package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/statuspulse/pulse-api/internal/api"
	apiMiddleware "github.com/statuspulse/pulse-api/internal/api/middleware"
	"github.com/statuspulse/pulse-api/internal/service/auth"
	"github.com/statuspulse/pulse-api/internal/watch"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func setupRouter(engine *watch.Engine, verifier auth.TokenVerifier, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	jobsHandler := api.NewJobsHandler(engine, logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(verifier)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/jobs", jobsHandler.ListJobs)
			r.Get("/jobs/stream", jobsHandler.StreamJobs)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
