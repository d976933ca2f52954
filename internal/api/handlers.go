// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/feedback"
	"github.com/mfeltner/suggestd/internal/metrics"
	"github.com/mfeltner/suggestd/internal/pipeline"
	"github.com/mfeltner/suggestd/internal/suggest"
)

// Suggester produces ranked suggestions for an input message.
type Suggester interface {
	Suggest(input string, k int) []suggest.Suggestion
}

// Engine is the pipeline surface the handlers need.
type Engine interface {
	AddFeedback(ctx context.Context, entry feedback.Entry) (thresholdCrossed bool, err error)
	Retrain(ctx context.Context) (pipeline.Result, error)
	Stats(ctx context.Context) (pipeline.Statistics, error)
}

// Handler serves the suggestion API.
type Handler struct {
	suggester Suggester
	engine    Engine
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(suggester Suggester, engine Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		suggester: suggester,
		engine:    engine,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

type feedbackRequest struct {
	Input   string            `json:"input" validate:"required"`
	Output  string            `json:"output" validate:"required"`
	Rating  int               `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string            `json:"comment" validate:"omitempty,max=2000"`
	Context map[string]string `json:"context" validate:"omitempty,max=8"`
}

type reactionRequest struct {
	Input    string            `json:"input" validate:"required"`
	Output   string            `json:"output" validate:"required"`
	Reaction string            `json:"reaction" validate:"required,oneof=like dislike save share copy reuse"`
	Context  map[string]string `json:"context" validate:"omitempty,max=8"`
}

type suggestionsResponse struct {
	Input       string               `json:"input"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

type acceptedResponse struct {
	Status           string `json:"status"`
	RetrainTriggered bool   `json:"retrain_triggered"`
}

// Suggestions handles GET /api/v1/suggestions?input=...&k=...
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	if input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, http.StatusBadRequest, "k must be an integer in [1,50]")
			return
		}
		k = parsed
	}

	start := time.Now()
	suggestions := h.suggester.Suggest(input, k)
	outcome := "hit"
	if len(suggestions) == 0 {
		outcome = "empty"
	}
	metrics.ObserveSuggestion(outcome, time.Since(start))

	writeJSON(w, http.StatusOK, suggestionsResponse{
		Input:       input,
		Suggestions: suggestions,
	})
}

// Feedback handles POST /api/v1/feedback with a star rating.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry := feedback.NewRatingEntry(req.Input, req.Output, req.Rating, req.Comment, req.Context)
	h.accept(w, r, entry)
}

// Reaction handles POST /api/v1/reactions.
func (h *Handler) Reaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry := feedback.NewReactionEntry(req.Input, req.Output, feedback.Reaction(req.Reaction), req.Context)
	h.accept(w, r, entry)
}

// accept journals the entry and kicks off retraining when the buffer
// threshold was crossed.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, entry feedback.Entry) {
	crossed, err := h.engine.AddFeedback(r.Context(), entry)
	if err != nil {
		h.logger.Error().Err(err).Msg("feedback not accepted")
		writeError(w, http.StatusInternalServerError, "feedback could not be stored")
		return
	}
	if crossed {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := h.engine.Retrain(ctx); err != nil {
				h.logger.Error().Err(err).Msg("threshold-triggered retrain failed")
			}
		}()
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status:           "accepted",
		RetrainTriggered: crossed,
	})
}

// Retrain handles POST /api/v1/retrain, running a cycle synchronously.
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Retrain(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("manual retrain failed")
		writeError(w, http.StatusInternalServerError, "retrain failed")
		return
	}
	status := http.StatusOK
	if result.Reason == "retrain already in progress" {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// Statistics handles GET /api/v1/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("statistics unavailable")
		writeError(w, http.StatusInternalServerError, "statistics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses and validates a JSON request body. A false return means
// the error response was already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
