package runner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// Init validates the model, resolves the pipeline and builds the initial
// state. It may be called again on a ready runner to start over with a new
// model. On failure the runner is left uninitialized.
func (r *Runner) Init(ctx context.Context, m *config.Model) error {
	if !r.status.CompareAndSwap(int32(Uninitialized), int32(Running)) &&
		!r.status.CompareAndSwap(int32(Ready), int32(Running)) {
		return ErrBusy
	}
	if err := r.init(ctx, m); err != nil {
		r.model, r.pipeline, r.store, r.episodeStart = nil, nil, nil, nil
		r.status.Store(int32(Uninitialized))
		return err
	}
	r.release()
	return nil
}

func (r *Runner) init(ctx context.Context, m *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	if err := m.Validate(); err != nil {
		return err
	}
	if err := r.reg.ValidateModel(ctx, m); err != nil {
		return err
	}
	p, err := pipeline.Build(r.reg, m.Substeps)
	if err != nil {
		return err
	}

	seed := rand.Int64()
	switch {
	case r.seed != nil:
		seed = *r.seed
	case m.Metadata.Seed != nil:
		seed = *m.Metadata.Seed
	}
	r.rng = newRand(seed)

	store, targets, err := r.buildStore(ctx, m)
	if err != nil {
		return err
	}
	if err := p.ValidatePaths(store); err != nil {
		return err
	}

	if r.runID == "" || r.model != nil {
		r.runID = uuid.NewString()
	}
	r.model = m
	r.pipeline = p
	r.store = store
	r.targets = targets
	r.episodeStart = store.Snapshot()
	r.atomicSteps = r.forceAtomic || m.Metadata.AtomicSteps
	r.episode = 0
	r.step = 0

	logger.Info("Runner initialized.",
		"run_id", r.runID,
		"seed", seed,
		"substeps", len(p.Substeps()),
		"groups", len(store.Groups()),
		"atomic_steps", r.atomicSteps,
	)
	return nil
}

// Reset restores the episode-start state, re-draws every initializer-backed
// variable and starts a new episode.
func (r *Runner) Reset(ctx context.Context) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	logger := ctxlog.FromContext(ctx)
	r.store.Restore(r.episodeStart)
	if err := r.draw(ctx, r.store, r.targets); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	r.episode++
	r.step = 0
	logger.Debug("Episode reset.", "episode", r.episode)

	return r.notifyReset(ctx, ResetEvent{RunID: r.runID, Episode: r.episode, Store: r.store, At: time.Now()})
}

// Step runs the pipeline n times. Observers are notified after each
// completed step. With atomic steps enabled a failing step leaves the state
// exactly as it was before that step.
func (r *Runner) Step(ctx context.Context, n int) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	logger := ctxlog.FromContext(ctx)
	if r.workers > 0 {
		ctx = stage.WithWorkers(ctx, r.workers)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		before := r.preStep()
		report, err := r.pipeline.RunOnce(ctx, r.store)
		if err != nil {
			if before != nil {
				r.store.Restore(before)
				logger.Warn("Step failed, state rolled back.", "episode", r.episode, "step", r.step+1)
			}
			return fmt.Errorf("episode %d step %d: %w", r.episode, r.step+1, err)
		}
		r.step++
		logger.Debug("Step completed.", "episode", r.episode, "step", r.step, "duration", report.Duration, "skipped", len(report.Skipped))

		ev := StepEvent{RunID: r.runID, Episode: r.episode, Step: r.step, Report: report, Store: r.store, At: time.Now()}
		if err := r.notifyStep(ctx, ev); err != nil {
			return fmt.Errorf("episode %d step %d: observer: %w", r.episode, r.step, err)
		}
	}
	return nil
}

// Run executes num_episodes episodes of num_steps_per_episode steps each,
// resetting before every episode. Cancellation is checked between steps.
func (r *Runner) Run(ctx context.Context) error {
	if r.State() == Uninitialized {
		return ErrNotInitialized
	}
	logger := ctxlog.FromContext(ctx)
	meta := r.model.Metadata

	logger.Info("🚀 Starting simulation...", "episodes", meta.NumEpisodes, "steps_per_episode", meta.NumStepsPerEpisode)
	start := time.Now()
	for ep := 0; ep < meta.NumEpisodes; ep++ {
		if err := r.Reset(ctx); err != nil {
			return err
		}
		for st := 0; st < meta.NumStepsPerEpisode; st++ {
			if err := ctx.Err(); err != nil {
				logger.Warn("Simulation cancelled.", "episode", r.episode, "step", r.step)
				return err
			}
			if err := r.Step(ctx, 1); err != nil {
				return err
			}
		}
		logger.Info("Episode finished.", "episode", r.episode, "steps", r.step)
	}
	logger.Info("🏁 Simulation finished.", "episodes", meta.NumEpisodes, "duration", time.Since(start))
	return nil
}

func (r *Runner) preStep() *state.Snapshot {
	if !r.atomicSteps {
		return nil
	}
	return r.store.Snapshot()
}
