package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// 100 deletes max, refill 1 per 100ms
	deleteRateLimiter := NewDeleteRateLimiter(100, 100*time.Millisecond)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Per-user routes (auth required when an API key is configured)
		r.Route("/users/{uuid}", func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Use(BodyLimitMiddleware(h.maxBodyBytes))
			r.Use(UserMiddleware)

			r.Get("/health", h.UserHealth)
			r.Post("/extract", h.Extract)
			r.Post("/search", h.Search)
			r.Post("/mirror", h.Mirror)
			r.With(deleteRateLimiter.Middleware).Delete("/", h.Delete)
		})
	})

	return r
}
