// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event announces a published model update to downstream consumers.
type Event struct {
	EventType    string    `json:"event_type"`
	ChangeDegree float64   `json:"change_degree"`
	Summary      string    `json:"summary"`
	ModelVersion int64     `json:"model_version"`
	StateCount   int       `json:"state_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers model update events. Delivery is best-effort and
// decoupled from the retraining cycle; a failed publish never rolls back a
// model update.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes update events to the log. It is the default when no
// webhook is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "publisher").Logger()}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info().
		Str("event_type", event.EventType).
		Float64("change_degree", event.ChangeDegree).
		Int64("model_version", event.ModelVersion).
		Int("state_count", event.StateCount).
		Str("summary", event.Summary).
		Msg("model update published")
	return nil
}
