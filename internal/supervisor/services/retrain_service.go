// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package services wraps application components as suture services.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/pipeline"
)

// Retrainer runs one retraining cycle.
type Retrainer interface {
	Retrain(ctx context.Context) (pipeline.Result, error)
}

// RetrainService triggers retraining on a fixed interval, independent of
// the feedback threshold. It keeps the model fresh when feedback trickles
// in below the threshold for long stretches.
type RetrainService struct {
	retrainer Retrainer
	interval  time.Duration
	logger    zerolog.Logger
}

// NewRetrainService creates the scheduled retraining service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRetrainService(retrainer Retrainer, interval time.Duration, logger zerolog.Logger) *RetrainService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetrainService{
		retrainer: retrainer,
		interval:  interval,
		logger:    logger.With().Str("service", "retrain").Logger(),
	}
}

// Serve implements suture.Service.
func (s *RetrainService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduled retraining running")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduled retraining stopping")
			return ctx.Err()
		case <-ticker.C:
			result, err := s.retrainer.Retrain(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("scheduled retrain failed")
				continue
			}
			s.logger.Debug().
				Bool("applied", result.Applied).
				Str("phase", string(result.Phase)).
				Str("reason", result.Reason).
				Dur("duration", result.Duration).
				Msg("scheduled retrain finished")
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *RetrainService) String() string {
	return "retrain-service"
}
