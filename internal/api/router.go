package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Mutations share one token bucket; reads are unthrottled.
	mutations := rate.NewLimiter(rate.Limit(s.config.MutationRPS), s.config.MutationBurst)

	// Global middleware
	r.Use(requestLogger(s.log, s.config.Verbose))
	r.Use(recoverer(s.log))
	r.Use(prometheusMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)

		r.Route("/tracking", func(r chi.Router) {
			r.Get("/", s.handleListTracking)
			r.Get("/{id}", s.handleGetTracking)
			r.Get("/{id}/history", s.handleHistory)
		})

		r.With(rateLimit(mutations)).Post("/detect", s.handleDetect)

		r.Route("/alerts/{id}", func(r chi.Router) {
			r.Use(rateLimit(mutations))
			r.Post("/acknowledge", s.handleAcknowledge)
			r.Post("/in_progress", s.handleInProgress)
			r.Post("/resolve", s.handleResolve)
			r.Post("/close", s.handleClose)
		})
	})

	// Probes and metrics (public, no rate limit)
	r.Get("/healthz", s.healthHandler.Health)
	r.Get("/livez", s.healthHandler.Live)
	r.Get("/readyz", s.healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
