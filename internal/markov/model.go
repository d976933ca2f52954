// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package markov

import (
	"fmt"
	"sync"
	"time"
)

// Config contains configuration for the transition model.
type Config struct {
	// Alpha is the additive smoothing constant applied before row
	// normalization. Guarantees no transition probability is ever exactly
	// zero, preventing suggestion starvation for rare states.
	// Default: 0.1.
	Alpha float64

	// MaxStates caps the size of the state space. Labels beyond the cap are
	// rejected by AddStates and reported to the caller.
	// Default: 100.
	MaxStates int
}

// DefaultConfig returns default model configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:     0.1,
		MaxStates: 100,
	}
}

// Model owns the state space and the row-stochastic transition matrix.
//
// State identity is exact string equality; no canonicalization (case,
// whitespace) is performed. Once a label is assigned an index the index never
// changes. The matrix stores full precision; retrieval-time probability
// floors are the concern of the suggest package.
type Model struct {
	mu sync.RWMutex

	// states holds labels in insertion order; states[i] has index i.
	states []string

	// stateIndex maps a label to its dense index.
	stateIndex map[string]int

	// matrix is square, len(states) x len(states). The live model always
	// holds row-stochastic probabilities; batches accumulate raw weights on
	// a Fork and only reach readers through Adopt after Normalize.
	matrix [][]float64

	alpha     float64
	maxStates int

	// version increments on every completed Normalize or Load. Readers use
	// it to key caches so stale entries can never be confused with the live
	// model.
	version   int64
	updatedAt time.Time
}

// New creates an empty model. Zero config fields fall back to defaults.
func New(cfg Config) *Model {
	if cfg.Alpha <= 0 {
		cfg.Alpha = 0.1
	}
	if cfg.MaxStates <= 0 {
		cfg.MaxStates = 100
	}

	return &Model{
		stateIndex: make(map[string]int),
		alpha:      cfg.Alpha,
		maxStates:  cfg.MaxStates,
	}
}

// AddStates inserts labels not yet present, up to the capacity cap.
// It returns the number of labels actually added and the labels rejected at
// the boundary. Duplicate labels within the batch are counted once.
//
// Growing the matrix allocates a new zero matrix of the new size and copies
// the old values into the top-left block; the swap happens under the writer
// lock so concurrent readers never observe a matrix mid-resize.
func (m *Model) AddStates(labels []string) (added int, dropped []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, label := range labels {
		if _, ok := m.stateIndex[label]; ok {
			continue
		}
		if len(m.states) >= m.maxStates {
			dropped = append(dropped, label)
			continue
		}
		m.stateIndex[label] = len(m.states)
		m.states = append(m.states, label)
		added++
	}

	if added > 0 {
		m.growLocked(len(m.states))
	}
	return added, dropped
}

// growLocked resizes the matrix to n x n, preserving existing values in the
// top-left block. Must be called with the writer lock held.
func (m *Model) growLocked(n int) {
	old := len(m.matrix)
	if old >= n {
		return
	}
	grown := make([][]float64, n)
	for i := range grown {
		grown[i] = make([]float64, n)
		if i < old {
			copy(grown[i], m.matrix[i])
		}
	}
	m.matrix = grown
}

// RecordTransition increments the weight of the from -> to edge.
// Both labels must already have indices; referencing a label dropped at the
// capacity boundary fails with ErrUnknownState rather than being silently
// ignored.
func (m *Model) RecordTransition(from, to string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromIdx, ok := m.stateIndex[from]
	if !ok {
		return fmt.Errorf("record transition from %q: %w", from, ErrUnknownState)
	}
	toIdx, ok := m.stateIndex[to]
	if !ok {
		return fmt.Errorf("record transition to %q: %w", to, ErrUnknownState)
	}

	m.matrix[fromIdx][toIdx] += weight
	return nil
}

// Normalize applies additive smoothing and renormalizes every row to sum
// to 1. Rows whose pre-smoothing sum is zero become uniform distributions.
// Must be called after every batch of RecordTransition calls before the
// matrix is considered consistent.
func (m *Model) Normalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.states)
	if n == 0 {
		return
	}

	for i := 0; i < n; i++ {
		row := m.matrix[i]
		var rawSum float64
		for _, v := range row {
			rawSum += v
		}

		if rawSum == 0 {
			uniform := 1.0 / float64(n)
			for j := range row {
				row[j] = uniform
			}
			continue
		}

		denom := rawSum + m.alpha*float64(n)
		for j := range row {
			row[j] = (row[j] + m.alpha) / denom
		}
	}

	m.version++
	m.updatedAt = time.Now()
}

// Fork returns a detached copy of the model sharing no storage with the
// receiver. An update cycle mutates the fork while readers keep serving the
// original, then commits it back through Adopt.
func (m *Model) Fork() *Model {
	m.mu.RLock()
	defer m.mu.RUnlock()

	work := &Model{
		states:     append([]string(nil), m.states...),
		stateIndex: make(map[string]int, len(m.stateIndex)),
		matrix:     make([][]float64, len(m.matrix)),
		alpha:      m.alpha,
		maxStates:  m.maxStates,
		version:    m.version,
		updatedAt:  m.updatedAt,
	}
	for label, idx := range m.stateIndex {
		work.stateIndex[label] = idx
	}
	for i, row := range m.matrix {
		work.matrix[i] = append([]float64(nil), row...)
	}
	return work
}

// Adopt replaces the receiver's state with src's under a single writer-lock
// acquisition, so a reader observes either the pre-update or the post-update
// matrix and never an intermediate. src must be a private fork; the receiver
// takes ownership of its storage.
func (m *Model) Adopt(src *Model) {
	src.mu.RLock()
	defer src.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states = src.states
	m.stateIndex = src.stateIndex
	m.matrix = src.matrix
	m.alpha = src.alpha
	m.version = src.version
	m.updatedAt = src.updatedAt
}

// NextStateDistribution returns the probability of every known state
// following the given state. Unknown inputs receive the uniform distribution
// over all known states; this never returns an error. Returns nil when the
// model has no states at all.
func (m *Model) NextStateDistribution(state string) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.states)
	if n == 0 {
		return nil
	}

	dist := make(map[string]float64, n)

	idx, known := m.stateIndex[state]
	if !known {
		uniform := 1.0 / float64(n)
		for _, s := range m.states {
			dist[s] = uniform
		}
		return dist
	}

	row := m.matrix[idx]
	for j, s := range m.states {
		dist[s] = row[j]
	}
	return dist
}

// IndexOf returns the dense index assigned to a label.
func (m *Model) IndexOf(state string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.stateIndex[state]
	return idx, ok
}

// Contains reports whether the label has been assigned an index.
func (m *Model) Contains(state string) bool {
	_, ok := m.IndexOf(state)
	return ok
}

// StateCount returns the number of interned states.
func (m *Model) StateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Alpha returns the smoothing constant.
func (m *Model) Alpha() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alpha
}

// Version returns the update-cycle counter. It increments on every completed
// Normalize or Load, so it distinguishes every published model generation.
func (m *Model) Version() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// UpdatedAt returns the completion time of the last update cycle, or the
// zero time if the model has never been updated.
func (m *Model) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}
