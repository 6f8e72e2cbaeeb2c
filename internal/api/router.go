// Package api is the storefront gateway: it authenticates callers and
// aggregates backend calls into screen-sized responses.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
	"storefront-bff/internal/telemetry"
)

func NewRouter(h *Handler, authMiddleware *auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware)

	r.Get("/health/live", h.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.ValidateToken)
		r.Get("/dashboard", h.Dashboard)
		r.Post("/search", h.Search)
		r.Get("/events", h.Events)
		r.With(auth.RequireRole(models.RoleManager, models.RoleAdmin)).Post("/push", h.Push)
	})

	return r
}
