// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package pipeline

import (
	"fmt"
	"math"

	"github.com/mfeltner/suggestd/internal/markov"
)

// diffSampleSize bounds the matrix comparison to the top-left block. States
// keep their indices for life, so the earliest (most established) states
// live there; comparing them samples the model's stable core without an
// O(n^2) walk over the full matrix.
const diffSampleSize = 10

// ChangeReport quantifies how far a retrained model moved from its
// predecessor.
type ChangeReport struct {
	// StateDelta is the relative change in state count, in [0,1].
	StateDelta float64 `json:"state_delta"`

	// MatrixDelta is the mean absolute probability difference over the
	// sampled block, in [0,1].
	MatrixDelta float64 `json:"matrix_delta"`

	// Degree is the overall change, the mean of StateDelta and MatrixDelta.
	Degree float64 `json:"degree"`

	OldStateCount int `json:"old_state_count"`
	NewStateCount int `json:"new_state_count"`

	// Summary is a human-readable description for publish events and logs.
	Summary string `json:"summary"`
}

// Compare measures the change between two model snapshots. A nil or empty
// previous snapshot reports degree zero; with nothing to compare against
// there is no change to act on.
func Compare(previous, current *markov.Snapshot) ChangeReport {
	if current == nil {
		return ChangeReport{Summary: "no current snapshot"}
	}
	if previous == nil || previous.StateCount == 0 {
		return ChangeReport{
			NewStateCount: current.StateCount,
			Summary:       "no previous snapshot to compare",
		}
	}

	report := ChangeReport{
		OldStateCount: previous.StateCount,
		NewStateCount: current.StateCount,
	}

	countDiff := math.Abs(float64(current.StateCount - previous.StateCount))
	report.StateDelta = countDiff / math.Max(float64(previous.StateCount), 1)
	if report.StateDelta > 1 {
		report.StateDelta = 1
	}

	report.MatrixDelta = sampledMatrixDelta(previous.TransitionMatrix, current.TransitionMatrix)
	report.Degree = (report.StateDelta + report.MatrixDelta) / 2
	report.Summary = fmt.Sprintf("states %d -> %d, matrix delta %.4f, degree %.4f",
		previous.StateCount, current.StateCount, report.MatrixDelta, report.Degree)
	return report
}

func sampledMatrixDelta(previous, current [][]float64) float64 {
	rows := min3(len(previous), len(current), diffSampleSize)
	if rows == 0 {
		return 0
	}

	var sum float64
	var cells int
	for i := 0; i < rows; i++ {
		cols := min3(len(previous[i]), len(current[i]), diffSampleSize)
		for j := 0; j < cols; j++ {
			sum += math.Abs(current[i][j] - previous[i][j])
			cells++
		}
	}
	if cells == 0 {
		return 0
	}
	return sum / float64(cells)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
