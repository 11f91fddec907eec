package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/substepgrid/internal/checkpoint"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/runner"
	"github.com/vk/substepgrid/internal/telemetry"
)

// Run initializes a runner from the loaded model and executes every episode.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		stop := a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer stop()
	}

	opts := []runner.Option{
		runner.WithBaseDir(a.baseDir()),
		runner.WithWorkers(a.config.Workers),
	}
	if a.config.Seed != nil {
		opts = append(opts, runner.WithSeed(*a.config.Seed))
	}
	if a.config.AtomicSteps {
		opts = append(opts, runner.WithAtomicSteps())
	}

	observers, closeObservers, err := a.observers(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeObservers(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	opts = append(opts, runner.WithObservers(observers...))

	a.logger.Info("Stages registered:", "count", len(a.registry.Stages()), "keys", a.registry.Stages())

	rn := runner.New(a.registry, opts...)
	a.runner.Store(rn)
	if err := rn.Init(ctx, a.model); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if a.model.Metadata.Calibration {
		a.logger.Warn("Calibration is not supported; running a plain simulation.")
	}
	if err := rn.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// observers opens the configured checkpoint and telemetry sinks. The
// returned function closes everything that was opened.
func (a *App) observers(ctx context.Context) ([]runner.Observer, func() error, error) {
	var (
		observers []runner.Observer
		closers   []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if path := a.config.CheckpointPath; path != "" {
		cp, err := checkpoint.Open(path, checkpoint.WithInterval(a.config.CheckpointInterval))
		if err != nil {
			return nil, nil, fmt.Errorf("opening checkpoint store: %w", err)
		}
		a.logger.Info("💾 Checkpoints enabled.", "path", path)
		observers = append(observers, cp)
		closers = append(closers, cp.Close)
	}

	if url := a.config.TelemetryURL; url != "" {
		clientCfg, pubOpts := telemetrySettings(a.config)
		em, err := telemetry.Dial(ctx, clientCfg)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("connecting telemetry: %w", err), closeAll())
		}
		pub := telemetry.NewPublisher(em, pubOpts...)
		a.logger.Info("📡 Telemetry enabled.", "url", url, "agents", a.config.TelemetryAgents)
		observers = append(observers, pub)
		closers = append(closers, pub.Close)
	}

	return observers, closeAll, nil
}

func telemetrySettings(cfg *Config) (telemetry.ClientConfig, []telemetry.PublisherOption) {
	clientCfg := telemetry.ClientConfig{
		URL:                cfg.TelemetryURL,
		Namespace:          cfg.TelemetryNamespace,
		InsecureSkipVerify: cfg.TelemetryInsecure,
	}
	var opts []telemetry.PublisherOption
	if cfg.TelemetryAgents {
		opts = append(opts, telemetry.WithAgents())
	}
	return clientCfg, opts
}
