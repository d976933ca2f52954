// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/feedback"
	"github.com/mfeltner/suggestd/internal/pipeline"
	"github.com/mfeltner/suggestd/internal/suggest"
)

type stubSuggester struct {
	suggestions []suggest.Suggestion
	lastInput   string
	lastK       int
}

func (s *stubSuggester) Suggest(input string, k int) []suggest.Suggestion {
	s.lastInput = input
	s.lastK = k
	return s.suggestions
}

type stubEngine struct {
	mu        sync.Mutex
	entries   []feedback.Entry
	crossed   bool
	addErr    error
	result    pipeline.Result
	retrains  int
	stats     pipeline.Statistics
	statsErr  error
	retrained chan struct{}
}

func (e *stubEngine) AddFeedback(_ context.Context, entry feedback.Entry) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return e.crossed, e.addErr
}

func (e *stubEngine) Retrain(context.Context) (pipeline.Result, error) {
	e.mu.Lock()
	e.retrains++
	e.mu.Unlock()
	if e.retrained != nil {
		e.retrained <- struct{}{}
	}
	return e.result, nil
}

func (e *stubEngine) Stats(context.Context) (pipeline.Statistics, error) {
	return e.stats, e.statsErr
}

func newTestServer(t *testing.T, s *stubSuggester, e *stubEngine) *httptest.Server {
	t.Helper()
	h := NewHandler(s, e, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(h, RouterConfig{}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestSuggestionsEndpoint(t *testing.T) {
	t.Parallel()

	suggester := &stubSuggester{suggestions: []suggest.Suggestion{
		{Text: "hello", Confidence: 0.7},
		{Text: "hey", Confidence: 0.3},
	}}
	srv := newTestServer(t, suggester, &stubEngine{})

	resp, err := http.Get(srv.URL + "/api/v1/suggestions?input=hi&k=2")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Input       string               `json:"input"`
		Suggestions []suggest.Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body.Input != "hi" || len(body.Suggestions) != 2 {
		t.Errorf("body = %+v", body)
	}
	if suggester.lastInput != "hi" || suggester.lastK != 2 {
		t.Errorf("suggester called with (%q, %d), want (hi, 2)", suggester.lastInput, suggester.lastK)
	}
}

func TestSuggestionsValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSuggester{}, &stubEngine{})

	tests := []struct {
		name string
		url  string
	}{
		{"missing input", "/api/v1/suggestions"},
		{"k not a number", "/api/v1/suggestions?input=hi&k=lots"},
		{"k zero", "/api/v1/suggestions?input=hi&k=0"},
		{"k too large", "/api/v1/suggestions?input=hi&k=999"},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.url)
		if err != nil {
			t.Fatalf("%s: GET error = %v", tt.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	srv := newTestServer(t, &stubSuggester{}, engine)

	body := `{"input":"thanks","output":"you're welcome","rating":5,"context":{"previous":"hi"}}`
	resp, err := http.Post(srv.URL+"/api/v1/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var got acceptedResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.Status != "accepted" || got.RetrainTriggered {
		t.Errorf("response = %+v", got)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.entries) != 1 {
		t.Fatalf("engine received %d entries, want 1", len(engine.entries))
	}
	entry := engine.entries[0]
	if entry.Input != "thanks" || entry.Signal.Rating != 5 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Signal.Weight != 2.0 {
		t.Errorf("weight = %v, want 2.0 for rating 5", entry.Signal.Weight)
	}
}

func TestFeedbackValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSuggester{}, &stubEngine{})

	tests := []struct {
		name string
		body string
	}{
		{"missing input", `{"output":"x","rating":3}`},
		{"missing output", `{"input":"x","rating":3}`},
		{"rating too low", `{"input":"x","output":"y","rating":0}`},
		{"rating too high", `{"input":"x","output":"y","rating":6}`},
		{"unknown field", `{"input":"x","output":"y","rating":3,"bogus":true}`},
		{"malformed json", `{"input":`},
	}
	for _, tt := range tests {
		resp, err := http.Post(srv.URL+"/api/v1/feedback", "application/json", strings.NewReader(tt.body))
		if err != nil {
			t.Fatalf("%s: POST error = %v", tt.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
	}
}

func TestReactionEndpoint(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	srv := newTestServer(t, &stubSuggester{}, engine)

	body := `{"input":"q","output":"a","reaction":"like"}`
	resp, err := http.Post(srv.URL+"/api/v1/reactions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	entry := engine.entries[0]
	if entry.Signal.Reaction != feedback.ReactionLike {
		t.Errorf("reaction = %q, want like", entry.Signal.Reaction)
	}
	if entry.Signal.Rating != 4 {
		t.Errorf("implied rating = %d, want 4", entry.Signal.Rating)
	}

	// Unrecognized reaction types are rejected.
	resp, err = http.Post(srv.URL+"/api/v1/reactions", "application/json",
		strings.NewReader(`{"input":"q","output":"a","reaction":"wave"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d for bad reaction, want 400", resp.StatusCode)
	}
}

func TestFeedbackTriggersRetrainAtThreshold(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{crossed: true, retrained: make(chan struct{}, 1)}
	srv := newTestServer(t, &stubSuggester{}, engine)

	body := `{"input":"x","output":"y","rating":4}`
	resp, err := http.Post(srv.URL+"/api/v1/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	var got acceptedResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !got.RetrainTriggered {
		t.Error("RetrainTriggered = false, want true")
	}

	select {
	case <-engine.retrained:
	case <-time.After(2 * time.Second):
		t.Fatal("async retrain not started")
	}
}

func TestRetrainEndpoint(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{result: pipeline.Result{
		Applied: true,
		Phase:   pipeline.PhasePublished,
	}}
	srv := newTestServer(t, &stubSuggester{}, engine)

	resp, err := http.Post(srv.URL+"/api/v1/retrain", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result pipeline.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !result.Applied || result.Phase != pipeline.PhasePublished {
		t.Errorf("result = %+v", result)
	}
}

func TestRetrainEndpointConflict(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{result: pipeline.Result{Reason: "retrain already in progress"}}
	srv := newTestServer(t, &stubSuggester{}, engine)

	resp, err := http.Post(srv.URL+"/api/v1/retrain", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{stats: pipeline.Statistics{
		StateCount:      42,
		ModelVersion:    7,
		PendingFeedback: 3,
		Phase:           pipeline.PhaseIdle,
	}}
	srv := newTestServer(t, &stubSuggester{}, engine)

	resp, err := http.Get(srv.URL + "/api/v1/statistics")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	var stats pipeline.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if stats.StateCount != 42 || stats.ModelVersion != 7 || stats.PendingFeedback != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSuggester{}, &stubEngine{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSuggester{}, &stubEngine{})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
