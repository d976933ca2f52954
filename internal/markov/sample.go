// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package markov

import (
	"fmt"
	"math/rand/v2"
)

// SampleNext draws a successor of state at random, weighted by its
// transition row. Unknown states draw uniformly over all known states,
// mirroring NextStateDistribution. A nil rng uses the shared package source.
func (m *Model) SampleNext(state string, rng *rand.Rand) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.states)
	if n == 0 {
		return "", fmt.Errorf("sample next of %q: model has no states", state)
	}

	draw := rand.Float64
	intn := rand.IntN
	if rng != nil {
		draw = rng.Float64
		intn = rng.IntN
	}

	idx, known := m.stateIndex[state]
	if !known {
		return m.states[intn(n)], nil
	}

	row := m.matrix[idx]
	var total float64
	for _, p := range row {
		total += p
	}
	if total <= 0 {
		// Never-normalized row; a uniform pick matches what Normalize
		// would produce for it.
		return m.states[intn(n)], nil
	}

	r := draw() * total
	for j, p := range row {
		r -= p
		if r < 0 {
			return m.states[j], nil
		}
	}
	// Floating residue past the last positive cell.
	return m.states[n-1], nil
}

// SampleSequence performs a random walk of length states starting from (and
// including) start.
func (m *Model) SampleSequence(start string, length int, rng *rand.Rand) ([]string, error) {
	if length <= 0 {
		return nil, nil
	}

	sequence := make([]string, 0, length)
	sequence = append(sequence, start)
	current := start
	for len(sequence) < length {
		next, err := m.SampleNext(current, rng)
		if err != nil {
			return sequence, err
		}
		sequence = append(sequence, next)
		current = next
	}
	return sequence, nil
}
