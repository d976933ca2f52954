// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package markov implements the adaptive state-transition model at the heart
// of Suggestd.
//
// The model maintains a set of text states (user utterances and system
// responses) and a dense row-stochastic transition matrix over them. States
// are interned into append-only integer indices; the matrix grows dynamically
// as new states arrive, up to a configurable capacity.
//
// # Update Cycle
//
// Feedback-driven learning follows a strict batch discipline:
//
//	added, dropped := model.AddStates(labels)   // union of the batch, once
//	model.RecordTransition(from, to, weight)    // per weighted pair
//	model.Normalize()                           // once, after the batch
//
// Normalize applies additive smoothing (alpha) followed by row
// normalization, so after every completed cycle each row sums to 1.0 and no
// transition probability is ever exactly zero. Interleaving per-pair
// normalization would bias later pairs toward already-smoothed rows, which is
// why the engine batches.
//
// # Thread Safety
//
// All mutation (AddStates, RecordTransition, Normalize, Load) is serialized
// under an exclusive lock; readers (NextStateDistribution, StateCount,
// Version) take a shared lock and always observe a matrix of consistent
// dimensions. Matrix growth happens entirely inside the writer lock.
//
// # Persistence
//
// Snapshot round-trips through a single JSON document containing the states,
// their indices, the matrix, alpha, and the state count. Load rejects
// dimension-mismatched documents with ErrCorruptSnapshot.
package markov
