package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// StepReport summarizes one RunOnce call.
type StepReport struct {
	// Substeps lists the keys of the substeps that ran, in order.
	Substeps []string
	// Skipped holds the out-of-range indices stages skipped during the step.
	Skipped  []state.BoundsError
	Duration time.Duration
}

// PhaseError identifies the phase that aborted a step.
type PhaseError struct {
	Substep string
	Kind    stage.Kind
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("substep %q %s: %v", e.Substep, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// RunOnce executes every substep once, in order. Before each substep the
// scratch namespace is cleared except for the keys the substep carries in.
// The first failing phase aborts the step; state keeps whatever the
// preceding phases wrote.
func (p *Pipeline) RunOnce(ctx context.Context, s *state.Store) (*StepReport, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	report := &StepReport{}

	for _, sub := range p.substeps {
		s.ResetSubstep(sub.carry...)
		logger.Debug("Running substep.", "substep", sub.Key, "carried", len(sub.carry))

		subCtx := ctxlog.With(ctx, "substep", sub.Key)
		for _, st := range sub.Stages() {
			if err := st.Run(subCtx, s); err != nil {
				report.Skipped = s.DrainBounds()
				return report, &PhaseError{Substep: sub.Key, Kind: st.Spec().Kind, Err: err}
			}
		}
		report.Substeps = append(report.Substeps, sub.Key)
	}

	report.Skipped = s.DrainBounds()
	report.Duration = time.Since(start)
	for _, b := range report.Skipped {
		logger.Warn("Skipped out-of-range index.", "path", b.Path, "index", b.Index, "len", b.Len, "reason", b.Reason)
	}
	return report, nil
}
