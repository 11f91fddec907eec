package stage

import (
	"context"

	"github.com/vk/substepgrid/internal/state"
)

// Stage is one phase of one substep.
type Stage interface {
	Spec() Spec
	Run(ctx context.Context, s *state.Store) error
}

// Factory builds a stage from its configured declaration. Factories are
// called once when the pipeline is built, never during a step.
type Factory func(spec Spec) (Stage, error)

// Base carries a Spec and satisfies the Spec half of the Stage interface.
// Stage implementations embed it.
type Base struct {
	spec Spec
}

// NewBase wraps spec for embedding.
func NewBase(spec Spec) Base {
	return Base{spec: spec}
}

func (b Base) Spec() Spec { return b.spec }

// Func adapts a plain function into a Stage.
type Func struct {
	Base
	fn func(ctx context.Context, s *state.Store) error
}

// NewFunc returns a Stage that runs fn.
func NewFunc(spec Spec, fn func(ctx context.Context, s *state.Store) error) *Func {
	return &Func{Base: NewBase(spec), fn: fn}
}

func (f *Func) Run(ctx context.Context, s *state.Store) error {
	return f.fn(ctx, s)
}
