// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package feedback turns user reactions and star ratings into weighted
// transition updates for the Markov model.
//
// Entries accumulate in a Buffer until a size threshold triggers a
// drain-and-retrain; the UpdateEngine converts a drained batch into a single
// add-record-normalize cycle against the model. Each entry is consumed
// exactly once and discarded after a successful flush.
package feedback

import (
	"time"
)

// Reaction classifies a non-numeric feedback action on a response.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
	ReactionSave    Reaction = "save"
	ReactionShare   Reaction = "share"
	ReactionCopy    Reaction = "copy"
	ReactionReuse   Reaction = "reuse"
)

// Valid reports whether the reaction is one of the recognized types.
func (r Reaction) Valid() bool {
	switch r {
	case ReactionLike, ReactionDislike, ReactionSave, ReactionShare, ReactionCopy, ReactionReuse:
		return true
	default:
		return false
	}
}

// Signal carries the user's judgment of a response: a star rating in [1,5],
// an optional reaction type, and the learned weight derived from them.
type Signal struct {
	// Rating is the star rating in [1,5]. Reactions carry an implied rating
	// (dislike maps low, everything else high) so the update engine has a
	// uniform signal to normalize.
	Rating int `json:"rating"`

	// Reaction is set when the feedback arrived as a reaction rather than
	// an explicit rating.
	Reaction Reaction `json:"reaction,omitempty"`

	// Weight is the table weight recorded for the rating or reaction.
	// Kept for statistics and audit; the engine derives its transition
	// weight from Rating.
	Weight float64 `json:"weight"`

	// Comment is free-form text attached to the rating, if any.
	Comment string `json:"comment,omitempty"`
}

// Entry is an immutable feedback record. It is produced at submission time,
// consumed exactly once by the update engine, and not retained after a
// successful flush.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Signal    Signal    `json:"feedback"`

	// Context holds named context values (for example the previous
	// utterance). Each contributes a secondary transition from the context
	// value to the input at a reduced weight.
	Context map[string]string `json:"context,omitempty"`
}

// NewRatingEntry builds an entry for a star rating.
func NewRatingEntry(input, output string, rating int, comment string, context map[string]string) Entry {
	return Entry{
		Timestamp: time.Now(),
		Input:     input,
		Output:    output,
		Signal: Signal{
			Rating:  rating,
			Weight:  RatingWeight(rating),
			Comment: comment,
		},
		Context: context,
	}
}

// NewReactionEntry builds an entry for a reaction, carrying the reaction's
// implied rating alongside its table weight.
func NewReactionEntry(input, output string, reaction Reaction, context map[string]string) Entry {
	return Entry{
		Timestamp: time.Now(),
		Input:     input,
		Output:    output,
		Signal: Signal{
			Rating:   ImpliedRating(reaction),
			Reaction: reaction,
			Weight:   ReactionWeight(reaction),
		},
		Context: context,
	}
}
