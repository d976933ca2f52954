// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package metrics registers Prometheus instrumentation for the suggestion
// engine: retrieval traffic, cache efficiency, feedback intake, and
// retraining cycles.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Suggestion retrieval
	SuggestionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestd_suggestion_requests_total",
			Help: "Total suggestion retrievals",
		},
		[]string{"outcome"}, // "hit", "empty"
	)

	SuggestionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "suggestd_suggestion_duration_seconds",
			Help:    "Suggestion retrieval latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestd_cache_hits_total",
			Help: "Suggestion cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestd_cache_misses_total",
			Help: "Suggestion cache misses",
		},
	)

	// Feedback intake
	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestd_feedback_received_total",
			Help: "Feedback entries accepted",
		},
		[]string{"kind"}, // "rating", "reaction"
	)

	PendingFeedback = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "suggestd_feedback_pending",
			Help: "Unapplied feedback entries in the journal",
		},
	)

	// Retraining
	RetrainCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestd_retrain_cycles_total",
			Help: "Retraining cycles by outcome",
		},
		[]string{"outcome"}, // "published", "rejected", "skipped", "failed"
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "suggestd_retrain_duration_seconds",
			Help:    "Retraining cycle duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	ModelStates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "suggestd_model_states",
			Help: "States currently in the transition model",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "suggestd_model_version",
			Help: "Version counter of the published transition model",
		},
	)

	// Publishing
	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestd_publish_attempts_total",
			Help: "Model update publish attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "open"
	)
)

// ObserveRetrain records a completed retraining cycle.
func ObserveRetrain(outcome string, d time.Duration) {
	RetrainCycles.WithLabelValues(outcome).Inc()
	RetrainDuration.Observe(d.Seconds())
}

// ObserveSuggestion records one retrieval and its latency.
func ObserveSuggestion(outcome string, d time.Duration) {
	SuggestionRequests.WithLabelValues(outcome).Inc()
	SuggestionLatency.Observe(d.Seconds())
}
