// Package api exposes the HTTP control surface for the warming daemon.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prewarm/prewarm/internal/metrics"
)

// NewRouter wires middleware and routes around the handler.
func NewRouter(h *Handler, m *metrics.Metrics, metricsPath string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.Health)
	if metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.Get("/status", h.ListStatuses)
			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", h.GetSource)
				r.Delete("/", h.DeleteSource)
				r.Get("/status", h.GetStatus)
				r.Post("/warm", h.Warm)
			})
		})
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
