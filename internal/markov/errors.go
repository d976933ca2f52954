// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package markov

import "errors"

var (
	// ErrUnknownState is returned when a transition references a label that
	// was never assigned an index, typically because it was dropped at the
	// state-capacity boundary.
	ErrUnknownState = errors.New("unknown state")

	// ErrCorruptSnapshot is returned when a snapshot document is malformed
	// or its matrix dimensions disagree with the recorded state count.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
