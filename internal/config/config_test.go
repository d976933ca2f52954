// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Model.Alpha != 0.1 {
		t.Errorf("Model.Alpha = %v, want 0.1", cfg.Model.Alpha)
	}
	if cfg.Model.MaxStates != 100 {
		t.Errorf("Model.MaxStates = %d, want 100", cfg.Model.MaxStates)
	}
	if cfg.Model.MinProbability != 0.01 {
		t.Errorf("Model.MinProbability = %v, want 0.01", cfg.Model.MinProbability)
	}
	if cfg.Feedback.BufferThreshold != 10 {
		t.Errorf("Feedback.BufferThreshold = %d, want 10", cfg.Feedback.BufferThreshold)
	}
	if cfg.Pipeline.ChangeThreshold != 0.15 {
		t.Errorf("Pipeline.ChangeThreshold = %v, want 0.15", cfg.Pipeline.ChangeThreshold)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
model:
  max_states: 250
  alpha: 0.05
server:
  port: 9090
pipeline:
  retrain_interval: 30m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Model.MaxStates != 250 {
		t.Errorf("Model.MaxStates = %d, want 250", cfg.Model.MaxStates)
	}
	if cfg.Model.Alpha != 0.05 {
		t.Errorf("Model.Alpha = %v, want 0.05", cfg.Model.Alpha)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Pipeline.RetrainInterval != 30*time.Minute {
		t.Errorf("Pipeline.RetrainInterval = %v, want 30m", cfg.Pipeline.RetrainInterval)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.Size != 1024 {
		t.Errorf("Cache.Size = %d, want default 1024", cfg.Cache.Size)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SUGGESTD_SERVER_PORT", "7070")
	t.Setenv("SUGGESTD_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"SUGGESTD_SERVER_PORT", "server.port"},
		{"SUGGESTD_MODEL_MAX_STATES", "model.max_states"},
		{"SUGGESTD_FEEDBACK_BUFFER_THRESHOLD", "feedback.buffer_threshold"},
		{"SUGGESTD_WEBHOOK_URL", "webhook.url"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.key); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "zero alpha",
			mutate:  func(c *Config) { c.Model.Alpha = 0 },
			wantSub: "Alpha",
		},
		{
			name:    "negative max states",
			mutate:  func(c *Config) { c.Model.MaxStates = -1 },
			wantSub: "MaxStates",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantSub: "Port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantSub: "Level",
		},
		{
			name:    "bad webhook url",
			mutate:  func(c *Config) { c.Webhook.URL = "not a url" },
			wantSub: "URL",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Pipeline.ChangeThreshold = 1.5 },
			wantSub: "ChangeThreshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantSub)
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}
