// Package print provides the "Print" substep, whose transition logs the
// values at its input paths. It changes nothing and is handy for following
// a simulation while writing a configuration:
//
//	substep "debug" {
//	  name = "Print"
//	  transition {
//	    inputs    = ["environment/product_stocks", "agents/consumers/budget"]
//	    arguments = { message = "after restock" }
//	  }
//	}
package print

import (
	"context"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Transition logs every input path. It declares no outputs.
type Transition struct {
	stage.Base
	message string
}

// NewTransition is the factory for Print/transition.
func NewTransition(spec stage.Spec) (stage.Stage, error) {
	args := struct {
		Message string `cty:"message"`
	}{Message: "Printing state."}
	if err := spec.Decode(&args); err != nil {
		return nil, err
	}
	spec.Outputs = nil
	return &Transition{Base: stage.NewBase(spec), message: args.Message}, nil
}

func (t *Transition) Run(ctx context.Context, s *state.Store) error {
	logger := ctxlog.FromContext(ctx)
	for _, path := range t.Spec().Inputs {
		v, err := s.Get(path)
		if err != nil {
			return err
		}
		logger.Info(t.message, "path", path, "value", printable(v))
	}
	return nil
}

// printable unwraps variables into their plain values.
func printable(v any) any {
	switch x := v.(type) {
	case *state.Variable:
		if x.DType == state.String {
			return x.Strings()
		}
		return x.Numbers()
	case *state.AgentGroup:
		return map[string]any{"agents": x.Len(), "properties": x.Properties()}
	}
	return v
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register("Print", stage.Transition, NewTransition)
}
