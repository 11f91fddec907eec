package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/runner"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	model    *config.Model
	runner   atomic.Pointer[runner.Runner]
}

// NewApp is the constructor for the main application. It loads the
// simulation configuration and registers the Go modules. With no modules
// given, the core modules are used.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.",
		"environment", len(model.Environment),
		"agent_groups", len(model.Agents),
		"substeps", len(model.Substeps),
	)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	if err := reg.Load(modules...); err != nil {
		return nil, err
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		model:    model,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration model.
func (a *App) Model() *config.Model {
	return a.model
}

// Runner returns the runner of the last Run call, or nil.
func (a *App) Runner() *runner.Runner {
	return a.runner.Load()
}

// baseDir is the directory relative file references in the configuration
// resolve against: the first configuration directory, or the directory of
// the first configuration file.
func (a *App) baseDir() string {
	if len(a.config.ConfigPaths) == 0 {
		return ""
	}
	first := a.config.ConfigPaths[0]
	if info, err := os.Stat(first); err == nil && info.IsDir() {
		return first
	}
	return filepath.Dir(first)
}
