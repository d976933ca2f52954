// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package config loads layered configuration: struct defaults, then an
// optional YAML file, then SUGGESTD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/suggestd/config.yaml",
	"/etc/suggestd/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "SUGGESTD_CONFIG_PATH"

// envPrefix namespaces environment overrides, e.g. SUGGESTD_SERVER_PORT.
const envPrefix = "SUGGESTD_"

// Config is the full runtime configuration.
type Config struct {
	Model    ModelConfig    `koanf:"model"`
	Feedback FeedbackConfig `koanf:"feedback"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Cache    CacheConfig    `koanf:"cache"`
	Journal  JournalConfig  `koanf:"journal"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ModelConfig controls the transition model.
type ModelConfig struct {
	// SnapshotPath is where the model is persisted between runs.
	SnapshotPath string `koanf:"snapshot_path" validate:"required"`

	// Alpha is the additive smoothing constant.
	Alpha float64 `koanf:"alpha" validate:"gt=0"`

	// MaxStates caps the vocabulary.
	MaxStates int `koanf:"max_states" validate:"gt=0"`

	// MinProbability filters retrieval candidates.
	MinProbability float64 `koanf:"min_probability" validate:"gt=0,lt=1"`

	// MaxSuggestions is the default retrieval count.
	MaxSuggestions int `koanf:"max_suggestions" validate:"gt=0"`
}

// FeedbackConfig controls feedback intake.
type FeedbackConfig struct {
	// BufferThreshold is the buffered entry count that triggers retraining.
	BufferThreshold int `koanf:"buffer_threshold" validate:"gt=0"`

	// ContextWeightFactor scales context transitions.
	ContextWeightFactor float64 `koanf:"context_weight_factor" validate:"gt=0,lte=1"`
}

// PipelineConfig controls retraining cycles.
type PipelineConfig struct {
	BackupDir       string        `koanf:"backup_dir" validate:"required"`
	ChangeThreshold float64       `koanf:"change_threshold" validate:"gte=0,lte=1"`
	RetrainInterval time.Duration `koanf:"retrain_interval" validate:"gte=0"`
	PublishTimeout  time.Duration `koanf:"publish_timeout" validate:"gt=0"`
}

// CacheConfig controls the suggestion cache.
type CacheConfig struct {
	Size int           `koanf:"size" validate:"gt=0"`
	TTL  time.Duration `koanf:"ttl" validate:"gt=0"`
}

// JournalConfig controls the durable feedback journal.
type JournalConfig struct {
	Path       string `koanf:"path" validate:"required"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// WebhookConfig controls model update event delivery. Empty URL disables
// webhook delivery; update events go to the log instead.
type WebhookConfig struct {
	URL              string        `koanf:"url" validate:"omitempty,url"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gt=0"`
	CooldownPeriod   time.Duration `koanf:"cooldown_period" validate:"gt=0"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimit is requests per minute per client IP. Zero disables.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the configuration before file and environment layers.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			SnapshotPath:   "/data/suggestd/model.json",
			Alpha:          0.1,
			MaxStates:      100,
			MinProbability: 0.01,
			MaxSuggestions: 5,
		},
		Feedback: FeedbackConfig{
			BufferThreshold:     10,
			ContextWeightFactor: 0.8,
		},
		Pipeline: PipelineConfig{
			BackupDir:       "/data/suggestd/backups",
			ChangeThreshold: 0.15,
			RetrainInterval: time.Hour,
			PublishTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			Size: 1024,
			TTL:  time.Hour,
		},
		Journal: JournalConfig{
			Path:       "/data/suggestd/journal",
			SyncWrites: true,
		},
		Webhook: WebhookConfig{
			URL:              "",
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
			CooldownPeriod:   30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
			CORSOrigins:     nil,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the config file if one
// exists, and environment overrides.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile builds the configuration using the given file path. Used by
// tests and the -config flag.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config: field %s fails %q constraint", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// envTransform maps SUGGESTD_SERVER_PORT to server.port. The first segment
// selects the section; the rest joins with underscores to match the koanf
// field names.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
