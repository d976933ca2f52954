// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package main is the entry point for the suggestd server.
//
// Suggestd serves adaptive next-message suggestions for an LLM chat
// frontend. A Markov transition model over message states is continuously
// retrained from user feedback (star ratings and reactions), and the
// retrained model is published to downstream consumers when it changed
// enough to matter.
//
// Startup order:
//
//  1. Configuration: koanf layering of defaults, config.yaml, SUGGESTD_* env
//  2. Logging: global zerolog logger
//  3. Journal: BadgerDB feedback journal, durable across restarts
//  4. Model: load the snapshot, or start fresh when absent or corrupt
//  5. Pipeline: retraining cycle wiring, buffer restored from the journal
//  6. Supervision: suture tree running the HTTP server and the retrain
//     scheduler, stopped on SIGINT or SIGTERM
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/api"
	"github.com/mfeltner/suggestd/internal/config"
	"github.com/mfeltner/suggestd/internal/feedback"
	"github.com/mfeltner/suggestd/internal/journal"
	"github.com/mfeltner/suggestd/internal/logging"
	"github.com/mfeltner/suggestd/internal/markov"
	"github.com/mfeltner/suggestd/internal/pipeline"
	"github.com/mfeltner/suggestd/internal/suggest"
	"github.com/mfeltner/suggestd/internal/supervisor"
	"github.com/mfeltner/suggestd/internal/supervisor/services"
)

func main() {
	configPath := flag.String("config", "", "path to config file (overrides search paths)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log := logging.Logger()
	log.Info().Msg("suggestd starting")

	jnl, err := journal.Open(journal.Config{
		Path:       cfg.Journal.Path,
		SyncWrites: cfg.Journal.SyncWrites,
	}, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			log.Error().Err(err).Msg("journal close failed")
		}
	}()

	model := loadModel(cfg, log)

	engine := feedback.NewUpdateEngine(model, feedback.EngineConfig{
		SnapshotPath:        cfg.Model.SnapshotPath,
		ContextWeightFactor: cfg.Feedback.ContextWeightFactor,
	}, log)
	buffer := feedback.NewBuffer(cfg.Feedback.BufferThreshold)

	retriever := suggest.NewRetriever(model, suggest.Config{
		MinProbability: cfg.Model.MinProbability,
		MaxSuggestions: cfg.Model.MaxSuggestions,
		CacheSize:      cfg.Cache.Size,
		CacheTTL:       cfg.Cache.TTL,
	}, log)

	var publisher pipeline.Publisher
	if cfg.Webhook.URL != "" {
		publisher = pipeline.NewWebhookPublisher(pipeline.WebhookConfig{
			URL:              cfg.Webhook.URL,
			Timeout:          cfg.Webhook.Timeout,
			FailureThreshold: cfg.Webhook.FailureThreshold,
			CooldownPeriod:   cfg.Webhook.CooldownPeriod,
		}, log)
	} else {
		publisher = pipeline.NewLogPublisher(log)
	}

	pipe := pipeline.New(model, engine, buffer, jnl, publisher, retriever, pipeline.Config{
		SnapshotPath:    cfg.Model.SnapshotPath,
		BackupDir:       cfg.Pipeline.BackupDir,
		ChangeThreshold: cfg.Pipeline.ChangeThreshold,
		PublishTimeout:  cfg.Pipeline.PublishTimeout,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if restored, err := pipe.RestoreBuffer(ctx); err != nil {
		return fmt.Errorf("restore feedback buffer: %w", err)
	} else if restored > 0 {
		log.Info().Int("entries", restored).Msg("feedback recovered from journal")
	}

	handler := api.NewHandler(retriever, pipe, log)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit:   cfg.Server.RateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddEngineService(services.NewRetrainService(pipe, cfg.Pipeline.RetrainInterval, log))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	log.Info().
		Str("addr", server.Addr).
		Int("model_states", model.StateCount()).
		Msg("suggestd ready")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("suggestd stopped")
	return nil
}

// loadModel loads the persisted snapshot. A missing file starts a fresh
// model; a corrupt one is logged and set aside rather than crashing the
// server, since feedback will rebuild the model over time.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func loadModel(cfg *config.Config, log zerolog.Logger) *markov.Model {
	modelCfg := markov.Config{
		Alpha:     cfg.Model.Alpha,
		MaxStates: cfg.Model.MaxStates,
	}

	model, err := markov.Load(cfg.Model.SnapshotPath, modelCfg)
	switch {
	case err == nil:
		log.Info().
			Str("path", cfg.Model.SnapshotPath).
			Int("states", model.StateCount()).
			Msg("model snapshot loaded")
		return model
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", cfg.Model.SnapshotPath).Msg("no snapshot; starting fresh model")
	case errors.Is(err, markov.ErrCorruptSnapshot):
		quarantine := cfg.Model.SnapshotPath + ".corrupt"
		if renameErr := os.Rename(cfg.Model.SnapshotPath, quarantine); renameErr != nil {
			log.Error().Err(renameErr).Msg("corrupt snapshot could not be set aside")
		}
		log.Warn().Err(err).
			Str("quarantined", quarantine).
			Msg("corrupt snapshot; starting fresh model")
	default:
		log.Warn().Err(err).Msg("snapshot unreadable; starting fresh model")
	}
	return markov.New(modelCfg)
}
