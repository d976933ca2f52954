// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package suggest

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/markov"
	"github.com/mfeltner/suggestd/internal/metrics"
)

// buildModel seeds a normalized model from weighted transitions.
func buildModel(t *testing.T, cfg markov.Config, states []string, edges map[[2]string]float64) *markov.Model {
	t.Helper()
	model := markov.New(cfg)
	model.AddStates(states)
	for pair, weight := range edges {
		if err := model.RecordTransition(pair[0], pair[1], weight); err != nil {
			t.Fatalf("RecordTransition(%v) error = %v", pair, err)
		}
	}
	model.Normalize()
	return model
}

func TestSuggestUnknownInputReturnsEmpty(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{}, []string{"a", "b"}, map[[2]string]float64{
		{"a", "b"}: 1,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	got := r.Suggest("never seen", 3)
	if len(got) != 0 {
		t.Errorf("Suggest(unknown) = %v, want empty", got)
	}
}

func TestSuggestRanksByConfidence(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{}, []string{"hi", "hello", "hey", "howdy"}, map[[2]string]float64{
		{"hi", "hello"}: 5,
		{"hi", "hey"}:   3,
		{"hi", "howdy"}: 1,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	got := r.Suggest("hi", 3)
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(got))
	}
	want := []string{"hello", "hey", "howdy"}
	for i, text := range want {
		if got[i].Text != text {
			t.Errorf("rank %d = %q, want %q", i, got[i].Text, text)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Errorf("confidence not descending at rank %d: %v", i, got)
		}
	}
}

func TestSuggestConfidencesRenormalized(t *testing.T) {
	t.Parallel()

	// Low alpha keeps tail states under the probability floor so the
	// filter actually removes mass before renormalization.
	states := []string{"in", "strong", "weak"}
	for i := 0; i < 20; i++ {
		states = append(states, string(rune('A'+i)))
	}
	model := buildModel(t, markov.Config{Alpha: 0.0001}, states, map[[2]string]float64{
		{"in", "strong"}: 8,
		{"in", "weak"}:   2,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	got := r.Suggest("in", 10)
	if len(got) != 2 {
		t.Fatalf("got %d suggestions after filtering, want 2: %v", len(got), got)
	}
	var sum float64
	for _, s := range got {
		sum += s.Confidence
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("confidences sum to %v, want 1", sum)
	}
	if math.Abs(got[0].Confidence-0.8) > 0.01 {
		t.Errorf("strong confidence = %v, want about 0.8", got[0].Confidence)
	}
}

func TestSuggestFiltersBelowMinProbability(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{Alpha: 0.0001}, []string{"in", "big", "tiny"}, map[[2]string]float64{
		{"in", "big"}:  99,
		{"in", "tiny"}: 1,
	})
	r := NewRetriever(model, Config{MinProbability: 0.05}, zerolog.Nop())

	got := r.Suggest("in", 5)
	if len(got) != 1 || got[0].Text != "big" {
		t.Errorf("Suggest() = %v, want only big", got)
	}
}

func TestSuggestTieBreaksOnStateOrder(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{}, []string{"in", "first", "second"}, map[[2]string]float64{
		{"in", "first"}:  1,
		{"in", "second"}: 1,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	for i := 0; i < 10; i++ {
		got := r.Suggest("in", 3)
		if len(got) < 2 || got[0].Text != "first" || got[1].Text != "second" {
			t.Fatalf("tie order unstable on run %d: %v", i, got)
		}
	}
}

func TestSuggestDefaultLimit(t *testing.T) {
	t.Parallel()

	states := []string{"in"}
	edges := make(map[[2]string]float64)
	for i := 0; i < 8; i++ {
		s := string(rune('a' + i))
		states = append(states, s)
		edges[[2]string{"in", s}] = float64(8 - i)
	}
	model := buildModel(t, markov.Config{}, states, edges)
	r := NewRetriever(model, Config{MaxSuggestions: 5}, zerolog.Nop())

	if got := r.Suggest("in", 0); len(got) != 5 {
		t.Errorf("Suggest(k=0) returned %d, want default 5", len(got))
	}
	if got := r.Suggest("in", 2); len(got) != 2 {
		t.Errorf("Suggest(k=2) returned %d, want 2", len(got))
	}
}

func TestSuggestCacheInvalidatedByRetrain(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{}, []string{"in", "old"}, map[[2]string]float64{
		{"in", "old"}: 5,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	before := r.Suggest("in", 3)
	if len(before) == 0 || before[0].Text != "old" {
		t.Fatalf("pre-retrain suggestions = %v", before)
	}

	// A new cycle bumps the model version, so the cached ranking for the
	// old version must not be served.
	model.AddStates([]string{"new"})
	if err := model.RecordTransition("in", "new", 50); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}
	model.Normalize()

	after := r.Suggest("in", 3)
	if len(after) == 0 || after[0].Text != "new" {
		t.Errorf("post-retrain top suggestion = %v, want new", after)
	}
}

func TestSuggestCacheHitCounting(t *testing.T) {
	t.Parallel()

	model := buildModel(t, markov.Config{}, []string{"in", "out"}, map[[2]string]float64{
		{"in", "out"}: 1,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	r.Suggest("in", 3)
	r.Suggest("in", 3)
	r.Suggest("in", 3)

	hits, misses := r.CacheStats()
	if hits != 2 || misses != 1 {
		t.Errorf("cache stats = %d hits %d misses, want 2 and 1", hits, misses)
	}
}

// Not parallel: asserts deltas on process-global Prometheus counters.
func TestSuggestExportsCacheCounters(t *testing.T) {
	model := buildModel(t, markov.Config{}, []string{"hi", "hello"}, map[[2]string]float64{
		{"hi", "hello"}: 1,
	})
	r := NewRetriever(model, Config{}, zerolog.Nop())

	hits := testutil.ToFloat64(metrics.CacheHits)
	misses := testutil.ToFloat64(metrics.CacheMisses)

	r.Suggest("hi", 3)
	r.Suggest("hi", 3)

	if got := testutil.ToFloat64(metrics.CacheMisses) - misses; got != 1 {
		t.Errorf("cache miss counter delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheHits) - hits; got != 1 {
		t.Errorf("cache hit counter delta = %v, want 1", got)
	}
}
