// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package feedback

import (
	"sync"
)

// Buffered pairs an entry with its durable journal ID so a successful flush
// can confirm exactly the records it consumed.
type Buffered struct {
	ID    string `json:"id"`
	Entry Entry  `json:"entry"`
}

// Buffer is the append-only staging queue between feedback ingestion and the
// update engine.
//
// Add reports when the size threshold is crossed; the threshold fires at
// most once per drain cycle, so concurrent Add calls crossing the threshold
// simultaneously trigger exactly one retrain. Drain atomically removes and
// returns all entries, which is the hand-off point to the update engine.
type Buffer struct {
	mu        sync.Mutex
	entries   []Buffered
	threshold int

	// triggered latches once the threshold fires and resets on Drain, so a
	// cycle is requested exactly once however many Adds race past the
	// boundary.
	triggered bool
}

// NewBuffer creates a buffer that reports the threshold crossed once
// size reaches threshold. A non-positive threshold defaults to 10.
func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = 10
	}
	return &Buffer{threshold: threshold}
}

// Add appends an entry. The returned flag is true for exactly one caller per
// drain cycle: the one whose append reached the threshold first.
func (b *Buffer) Add(rec Buffered) (thresholdCrossed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, rec)
	if len(b.entries) >= b.threshold && !b.triggered {
		b.triggered = true
		return true
	}
	return false
}

// Restore re-inserts records at the front of the queue without re-arming or
// consuming the threshold trigger. The pipeline uses it to return a drained
// batch after a failed update so no feedback is lost in-process.
func (b *Buffer) Restore(recs []Buffered) {
	if len(recs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(append([]Buffered(nil), recs...), b.entries...)
}

// Drain atomically removes and returns all buffered records, leaving the
// buffer empty and re-arming the threshold trigger. No record is ever
// drained twice, even when Add and a scheduled retrain race.
func (b *Buffer) Drain() []Buffered {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.entries
	b.entries = nil
	b.triggered = false
	return drained
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Threshold returns the configured flush threshold.
func (b *Buffer) Threshold() int {
	return b.threshold
}
