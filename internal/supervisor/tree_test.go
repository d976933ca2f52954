// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type signalService struct {
	started chan struct{}
}

func (s *signalService) Serve(ctx context.Context) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	t.Parallel()

	tree := NewTree(slog.Default(), TreeConfig{})
	engineSvc := &signalService{started: make(chan struct{}, 1)}
	apiSvc := &signalService{started: make(chan struct{}, 1)}
	tree.AddEngineService(engineSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	for _, ch := range []chan struct{}{engineSvc.started, apiSvc.started} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("service not started")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}
