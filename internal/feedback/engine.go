// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package feedback

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/markov"
)

// EngineConfig contains configuration for the update engine.
type EngineConfig struct {
	// SnapshotPath is where the model is persisted after a successful batch.
	SnapshotPath string

	// ContextWeightFactor scales the secondary context-to-input transitions
	// relative to the primary input-to-output weight. Keeps contextual
	// priming from dominating the direct feedback signal.
	// Default: 0.8.
	ContextWeightFactor float64
}

// transition is one weighted edge extracted from a feedback batch.
type transition struct {
	from   string
	to     string
	weight float64
}

// Report describes what a batch application did, including states rejected
// at the capacity boundary so callers learn about the drop at submission
// time instead of discovering it downstream.
type Report struct {
	// Applied is false for an empty batch (a no-op, not an error).
	Applied bool

	// Transitions is the number of edges recorded.
	Transitions int

	// DroppedStates lists labels rejected by the state-capacity cap.
	DroppedStates []string

	// SkippedTransitions counts edges not recorded because an endpoint was
	// dropped.
	SkippedTransitions int
}

// UpdateEngine converts feedback batches into weighted transition updates.
//
// A batch is applied as one cycle: the union of touched states is added
// once (amortizing matrix growth), every pair is recorded, and the matrix is
// normalized a single time. Interleaving per-pair normalization would bias
// later entries toward already-smoothed rows.
type UpdateEngine struct {
	model  *markov.Model
	cfg    EngineConfig
	logger zerolog.Logger
}

// NewUpdateEngine creates an engine bound to a model.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewUpdateEngine(model *markov.Model, cfg EngineConfig, logger zerolog.Logger) *UpdateEngine {
	if cfg.ContextWeightFactor <= 0 {
		cfg.ContextWeightFactor = 0.8
	}
	return &UpdateEngine{
		model:  model,
		cfg:    cfg,
		logger: logger.With().Str("component", "update_engine").Logger(),
	}
}

// Apply drives one add-record-normalize cycle for the batch and persists the
// updated model to the snapshot path. An empty batch is a no-op reported
// through Report.Applied, not an error.
//
// The cycle runs against a fork of the model and is adopted into the live
// model only after the snapshot persists. Readers never observe raw weights
// mid-batch, and a failed cycle leaves the live model exactly as it was, so
// the caller can safely re-submit the batch.
func (e *UpdateEngine) Apply(entries []Entry) (Report, error) {
	var report Report
	if len(entries) == 0 {
		return report, nil
	}

	transitions := collectTransitions(entries, e.cfg.ContextWeightFactor)
	if len(transitions) == 0 {
		return report, nil
	}

	work := e.model.Fork()

	// Add the union of touched states once so the matrix grows at most one
	// time for the whole batch.
	union := stateUnion(transitions)
	_, dropped := work.AddStates(union)
	report.DroppedStates = dropped

	droppedSet := make(map[string]struct{}, len(dropped))
	for _, s := range dropped {
		droppedSet[s] = struct{}{}
	}
	if len(dropped) > 0 {
		e.logger.Warn().
			Int("dropped", len(dropped)).
			Msg("state capacity exceeded; new states rejected")
	}

	for _, tr := range transitions {
		if _, ok := droppedSet[tr.from]; ok {
			report.SkippedTransitions++
			continue
		}
		if _, ok := droppedSet[tr.to]; ok {
			report.SkippedTransitions++
			continue
		}
		if err := work.RecordTransition(tr.from, tr.to, tr.weight); err != nil {
			if errors.Is(err, markov.ErrUnknownState) {
				// A pre-existing label beyond the cap; treated the same as a
				// batch-local drop.
				report.SkippedTransitions++
				continue
			}
			return report, fmt.Errorf("record transition: %w", err)
		}
		report.Transitions++
	}

	work.Normalize()

	if err := work.Save(e.cfg.SnapshotPath); err != nil {
		return report, fmt.Errorf("persist model: %w", err)
	}
	e.model.Adopt(work)

	report.Applied = true
	e.logger.Info().
		Int("entries", len(entries)).
		Int("transitions", report.Transitions).
		Int("skipped", report.SkippedTransitions).
		Int64("model_version", e.model.Version()).
		Msg("feedback batch applied")
	return report, nil
}

// collectTransitions flattens a batch into ordered weighted edges: the
// primary input-to-output edge per entry, plus context-to-input edges at the
// reduced factor. Context keys are walked in sorted order so a batch always
// produces the same sequence.
func collectTransitions(entries []Entry, contextFactor float64) []transition {
	transitions := make([]transition, 0, len(entries))
	for _, entry := range entries {
		if entry.Input == "" || entry.Output == "" {
			continue
		}

		w := NormalizedWeight(entry.Signal.Rating)
		transitions = append(transitions, transition{from: entry.Input, to: entry.Output, weight: w})

		if len(entry.Context) == 0 {
			continue
		}
		keys := make([]string, 0, len(entry.Context))
		for k := range entry.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := entry.Context[k]
			if value == "" {
				continue
			}
			transitions = append(transitions, transition{
				from:   value,
				to:     entry.Input,
				weight: w * contextFactor,
			})
		}
	}
	return transitions
}

// stateUnion returns every label touched by the transitions, in order of
// first appearance.
func stateUnion(transitions []transition) []string {
	seen := make(map[string]struct{}, len(transitions)*2)
	var union []string
	for _, tr := range transitions {
		if _, ok := seen[tr.from]; !ok {
			seen[tr.from] = struct{}{}
			union = append(union, tr.from)
		}
		if _, ok := seen[tr.to]; !ok {
			seen[tr.to] = struct{}{}
			union = append(union, tr.to)
		}
	}
	return union
}
