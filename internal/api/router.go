// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package api exposes the suggestion engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig controls cross-cutting HTTP behavior.
type RouterConfig struct {
	// RateLimit is requests per minute per client IP. Zero disables.
	RateLimit int

	// CORSOrigins lists allowed origins. Empty disables CORS entirely.
	CORSOrigins []string
}

// NewRouter wires the chi router: recovery, request logging, rate limiting,
// the versioned API, health, and Prometheus metrics.
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/suggestions", h.Suggestions)
		r.Post("/feedback", h.Feedback)
		r.Post("/reactions", h.Reaction)
		r.Post("/retrain", h.Retrain)
		r.Get("/statistics", h.Statistics)
	})

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
