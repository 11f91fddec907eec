package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPaths are .hcl/.yaml files or directories containing them.
	ConfigPaths []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// Workers caps per-agent fan-out inside stages. 0 means GOMAXPROCS.
	Workers int
	// Seed overrides simulation_metadata.seed when set.
	Seed        *int64
	AtomicSteps bool

	CheckpointPath     string
	CheckpointInterval int

	TelemetryURL       string
	TelemetryNamespace string
	// TelemetryAgents adds agent columns to the published payloads.
	TelemetryAgents   bool
	TelemetryInsecure bool
}

var (
	logFormats = map[string]bool{"text": true, "json": true, "pretty": true}
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !logFormats[cfg.LogFormat] {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text', 'json' or 'pretty'", cfg.LogFormat)
	}
	if !logLevels[cfg.LogLevel] {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.CheckpointInterval < 0 {
		return nil, fmt.Errorf("checkpoint-interval must not be negative, got %d", cfg.CheckpointInterval)
	}
	return &cfg, nil
}
