package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/warmup-scheduler/internal/monitoring"
)

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	Health         *HealthChecker
	Metrics        *monitoring.Metrics
	AllowedOrigins []string
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(httpMetrics(opts.Metrics))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.HandleHealth)
		r.Get("/health/live", opts.Health.HandleLiveness)
		r.Get("/health/ready", opts.Health.HandleReadiness)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.HTTPHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rotation", h.RotationStatus)
		r.Post("/selection", h.SelectBest)
		r.Post("/distribution", h.Distribute)

		r.Route("/identities/{id}", func(r chi.Router) {
			r.Get("/capacity", h.CanSend)
			r.Post("/sends", h.RecordSend)
			r.Post("/errors", h.RecordError)
			r.Get("/advice", h.Advise)
			r.Delete("/rate-limits", h.ResetRateLimits)

			r.Route("/warmup", func(r chi.Router) {
				r.Get("/", h.GetWarmup)
				r.Post("/", h.InitializeWarmup)
				r.Put("/", h.UpdateWarmup)
				r.Delete("/", h.DeleteWarmup)
				r.Post("/pause", h.PauseWarmup)
				r.Post("/resume", h.ResumeWarmup)
				r.Post("/disable", h.DisableWarmup)
				r.Put("/daily-limit", h.OverrideDailyLimit)
			})
		})
	})

	return r
}
