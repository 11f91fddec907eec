package testutil

import (
	"context"

	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// NoOpModule registers a "NoOp" substep whose transition does nothing. It's
// useful for tests that need a valid pipeline but no behaviour.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (m *NoOpModule) Register(r *registry.Registry) error {
	return r.Register("NoOp", stage.Transition, func(spec stage.Spec) (stage.Stage, error) {
		return stage.NewFunc(spec, func(context.Context, *state.Store) error { return nil }), nil
	})
}
