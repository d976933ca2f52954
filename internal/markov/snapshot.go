// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package markov

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Snapshot is the serialized form of a model. The key set is the durable
// contract between process restarts and must round-trip exactly, modulo
// floating precision.
type Snapshot struct {
	States           []string       `json:"states"`
	StateIndices     map[string]int `json:"state_indices"`
	TransitionMatrix [][]float64    `json:"transition_matrix"`
	Alpha            float64        `json:"alpha"`
	StateCount       int            `json:"state_count"`
}

// Validate checks the internal consistency of a snapshot document.
func (s *Snapshot) Validate() error {
	if s.StateCount != len(s.States) {
		return fmt.Errorf("state_count %d disagrees with %d states: %w",
			s.StateCount, len(s.States), ErrCorruptSnapshot)
	}
	if len(s.TransitionMatrix) != s.StateCount {
		return fmt.Errorf("matrix has %d rows, want %d: %w",
			len(s.TransitionMatrix), s.StateCount, ErrCorruptSnapshot)
	}
	for i, row := range s.TransitionMatrix {
		if len(row) != s.StateCount {
			return fmt.Errorf("matrix row %d has %d columns, want %d: %w",
				i, len(row), s.StateCount, ErrCorruptSnapshot)
		}
	}
	if len(s.StateIndices) != s.StateCount {
		return fmt.Errorf("state_indices has %d entries, want %d: %w",
			len(s.StateIndices), s.StateCount, ErrCorruptSnapshot)
	}

	// Every index in [0, state_count) must be assigned to exactly one state.
	seen := make([]bool, s.StateCount)
	for label, idx := range s.StateIndices {
		if idx < 0 || idx >= s.StateCount {
			return fmt.Errorf("state %q has index %d outside [0, %d): %w",
				label, idx, s.StateCount, ErrCorruptSnapshot)
		}
		if seen[idx] {
			return fmt.Errorf("index %d assigned to more than one state: %w", idx, ErrCorruptSnapshot)
		}
		seen[idx] = true
	}
	return nil
}

// ReadSnapshot parses and validates a snapshot file without constructing a
// live model. The versioning pipeline uses this to diff the backup against
// the freshly updated model as a pure function of the two documents.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %v: %w", path, err, ErrCorruptSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// Save writes the model to path as a snapshot document. The write goes
// through a temporary file and an atomic rename so a crash mid-write can
// never leave a truncated snapshot at the live path.
func (m *Model) Save(path string) error {
	m.mu.RLock()
	snap := Snapshot{
		States:           append([]string(nil), m.states...),
		StateIndices:     make(map[string]int, len(m.stateIndex)),
		TransitionMatrix: make([][]float64, len(m.matrix)),
		Alpha:            m.alpha,
		StateCount:       len(m.states),
	}
	for label, idx := range m.stateIndex {
		snap.StateIndices[label] = idx
	}
	for i, row := range m.matrix {
		snap.TransitionMatrix[i] = append([]float64(nil), row...)
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load constructs a model from a snapshot file. MaxStates comes from cfg so
// the capacity policy survives restarts independently of the snapshot;
// alpha comes from the snapshot itself.
func Load(path string, cfg Config) (*Model, error) {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}

	m := New(Config{Alpha: snap.Alpha, MaxStates: cfg.MaxStates})

	// state_indices is authoritative for ordering; the states sequence is
	// not guaranteed to be index-ordered in documents written by older
	// implementations.
	m.states = make([]string, snap.StateCount)
	for label, idx := range snap.StateIndices {
		m.stateIndex[label] = idx
		m.states[idx] = label
	}
	m.matrix = make([][]float64, snap.StateCount)
	for i, row := range snap.TransitionMatrix {
		m.matrix[i] = append([]float64(nil), row...)
	}
	m.version = 1
	return m, nil
}
