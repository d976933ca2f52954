// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mfeltner/suggestd/internal/metrics"
)

// WebhookConfig configures HTTP delivery of model update events.
type WebhookConfig struct {
	URL string

	// Timeout bounds one delivery attempt. Default: 10s.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5.
	FailureThreshold uint32

	// CooldownPeriod is how long the circuit stays open before allowing a
	// probe request. Default: 30s.
	CooldownPeriod time.Duration
}

// WebhookPublisher posts update events as JSON to a configured endpoint.
// A circuit breaker shields the retraining path from a dead endpoint;
// events attempted while the circuit is open are dropped, not queued.
type WebhookPublisher struct {
	cfg     WebhookConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

// NewWebhookPublisher creates a webhook publisher for the given endpoint.
func NewWebhookPublisher(cfg WebhookConfig, logger zerolog.Logger) *WebhookPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = 30 * time.Second
	}

	log := logger.With().Str("component", "webhook_publisher").Logger()
	settings := gobreaker.Settings{
		Name:    "model-update-webhook",
		Timeout: cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit state changed")
		},
	}

	return &WebhookPublisher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  log,
	}
}

// Publish posts the event. Failures count against the circuit breaker.
func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.post(ctx, payload)
	})
	switch {
	case err == nil:
		metrics.PublishAttempts.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.PublishAttempts.WithLabelValues("open").Inc()
		p.logger.Warn().Msg("webhook circuit open; event dropped")
		return fmt.Errorf("webhook circuit open: %w", err)
	default:
		metrics.PublishAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("deliver event: %w", err)
	}
}

func (p *WebhookPublisher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "suggestd")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
