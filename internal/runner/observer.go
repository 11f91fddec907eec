package runner

import (
	"context"
	"time"

	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/state"
)

// StepEvent describes a completed step.
type StepEvent struct {
	RunID   string
	Episode int
	// Step counts steps within the episode, starting at 1.
	Step   int
	Report *pipeline.StepReport
	// Store is the live store. Observers must not mutate it or keep it past
	// the call.
	Store *state.Store
	At    time.Time
}

// ResetEvent describes a completed reset.
type ResetEvent struct {
	RunID   string
	Episode int
	Store   *state.Store
	At      time.Time
}

// Observer receives progress notifications. An error returned by an observer
// fails the Step or Reset that triggered it.
type Observer interface {
	OnReset(ctx context.Context, ev ResetEvent) error
	OnStep(ctx context.Context, ev StepEvent) error
}

func (r *Runner) notifyStep(ctx context.Context, ev StepEvent) error {
	for _, o := range r.observers {
		if err := o.OnStep(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) notifyReset(ctx context.Context, ev ResetEvent) error {
	for _, o := range r.observers {
		if err := o.OnReset(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
