// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package suggest ranks next-message suggestions from the transition model.
package suggest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/cache"
	"github.com/mfeltner/suggestd/internal/markov"
	"github.com/mfeltner/suggestd/internal/metrics"
)

// Suggestion is one ranked candidate with its renormalized confidence.
type Suggestion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Config controls retrieval behavior.
type Config struct {
	// MinProbability filters out long-tail candidates before ranking.
	// Default: 0.01.
	MinProbability float64

	// MaxSuggestions bounds the number of candidates returned when the
	// caller does not ask for a specific count. Default: 5.
	MaxSuggestions int

	// CacheSize is the ranked-result cache capacity. Default: 1024.
	CacheSize int

	// CacheTTL bounds how long a ranked result may be served. Cache keys
	// carry the model version, so entries from an older model are never
	// returned even before they expire. Default: 1h.
	CacheTTL time.Duration
}

// Retriever computes ranked suggestions for an input state.
//
// Results are cached under a key that includes the model version, so a
// published retrain invalidates the whole cache implicitly. Unknown inputs
// return no suggestions rather than the model's uniform fallback; a uniform
// guess over arbitrary states is noise, not a suggestion.
type Retriever struct {
	model  *markov.Model
	cache  *cache.LRU[[]Suggestion]
	cfg    Config
	logger zerolog.Logger
}

// NewRetriever creates a retriever over the model.
func NewRetriever(model *markov.Model, cfg Config, logger zerolog.Logger) *Retriever {
	if cfg.MinProbability <= 0 {
		cfg.MinProbability = 0.01
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Retriever{
		model:  model,
		cache:  cache.NewLRU[[]Suggestion](cfg.CacheSize, cfg.CacheTTL),
		cfg:    cfg,
		logger: logger.With().Str("component", "retriever").Logger(),
	}
}

// Suggest returns up to k ranked suggestions for the input. k <= 0 uses the
// configured default. An unknown input yields an empty result.
func (r *Retriever) Suggest(input string, k int) []Suggestion {
	if k <= 0 {
		k = r.cfg.MaxSuggestions
	}

	key := fmt.Sprintf("%d:%d:%s", r.model.Version(), k, input)
	if cached, ok := r.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		return cached
	}
	metrics.CacheMisses.Inc()

	suggestions := r.rank(input, k)
	r.cache.Add(key, suggestions)
	return suggestions
}

// CacheStats exposes hit and miss counters for the statistics surface.
func (r *Retriever) CacheStats() (hits, misses int64) {
	hits, misses, _ = r.cache.Stats()
	return hits, misses
}

func (r *Retriever) rank(input string, k int) []Suggestion {
	if !r.model.Contains(input) {
		return []Suggestion{}
	}

	dist := r.model.NextStateDistribution(input)
	if len(dist) == 0 {
		return []Suggestion{}
	}

	// Filter the long tail, then renormalize the survivors so confidences
	// sum to one.
	var mass float64
	candidates := make([]Suggestion, 0, len(dist))
	for text, p := range dist {
		if p < r.cfg.MinProbability {
			continue
		}
		candidates = append(candidates, Suggestion{Text: text, Confidence: p})
		mass += p
	}
	if len(candidates) == 0 || mass == 0 {
		return []Suggestion{}
	}
	for i := range candidates {
		candidates[i].Confidence /= mass
	}

	// Order by confidence descending; ties break on state index so equal
	// probabilities rank deterministically.
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].Confidence != candidates[b].Confidence {
			return candidates[a].Confidence > candidates[b].Confidence
		}
		ia, _ := r.model.IndexOf(candidates[a].Text)
		ib, _ := r.model.IndexOf(candidates[b].Text)
		return ia < ib
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
