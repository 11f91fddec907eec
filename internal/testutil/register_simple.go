package testutil

import (
	"context"

	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers plain functions as the phases of one substep. Nil phases are
// not registered.
type SimpleModule struct {
	Name        string
	Observation func(ctx context.Context, s *state.Store) error
	Policy      func(ctx context.Context, s *state.Store) error
	Transition  func(ctx context.Context, s *state.Store) error
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) error {
	phases := []func(ctx context.Context, s *state.Store) error{m.Observation, m.Policy, m.Transition}
	for i, kind := range stage.Kinds {
		fn := phases[i]
		if fn == nil {
			continue
		}
		err := r.Register(m.Name, kind, func(spec stage.Spec) (stage.Stage, error) {
			return stage.NewFunc(spec, fn), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
