// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package feedback

// ratingWeights maps star ratings to learning weights.
var ratingWeights = map[int]float64{
	5: 2.0, // strong like
	4: 1.5, // like
	3: 1.0, // neutral
	2: 0.5, // dislike
	1: 0.2, // strong dislike
}

// reactionWeights maps reaction types to learning weights.
var reactionWeights = map[Reaction]float64{
	ReactionLike:    1.8,
	ReactionDislike: 0.3,
	ReactionSave:    1.6,
	ReactionShare:   1.7,
	ReactionCopy:    1.4,
	ReactionReuse:   1.5,
}

// RatingWeight returns the table weight for a star rating.
// Out-of-range ratings fall back to the neutral weight.
func RatingWeight(rating int) float64 {
	if w, ok := ratingWeights[rating]; ok {
		return w
	}
	return 1.0
}

// ReactionWeight returns the table weight for a reaction type.
// Unrecognized reactions fall back to the neutral weight.
func ReactionWeight(r Reaction) float64 {
	if w, ok := reactionWeights[r]; ok {
		return w
	}
	return 1.0
}

// ImpliedRating maps a reaction onto the rating scale so the update engine
// can normalize all feedback uniformly: dislike reads as a low rating, every
// other reaction as a positive one.
func ImpliedRating(r Reaction) int {
	if r == ReactionDislike {
		return 2
	}
	return 4
}

// NormalizedWeight converts a star rating into the [0,1] transition weight
// used by the update engine.
func NormalizedWeight(rating int) float64 {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	return float64(rating) / 5.0
}
