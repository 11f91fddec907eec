// Package initializers provides the built-in functions that fill declared
// environment variables and agent properties when state is built.
package initializers

import (
	"fmt"

	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/state"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers every initializer with the engine.
func (m *Module) Register(r *registry.Registry) error {
	entries := []struct {
		name string
		fn   registry.Initializer
	}{
		{"constant", Constant},
		{"sequence", Sequence},
		{"uniform", Uniform},
		{"normal", Normal},
		{"expr", Expr},
		{"read_from_file", ReadFromFile},
	}
	for _, e := range entries {
		if err := r.RegisterInitializer(e.name, e.fn); err != nil {
			return err
		}
	}
	return nil
}

// fill builds an Assign-compatible slice of req.Size elements from gen.
func fill(req registry.InitRequest, gen func(i int) (float64, error)) (any, error) {
	if req.DType == state.String {
		return nil, fmt.Errorf("%s: numeric initializer cannot fill a str variable", req.Name)
	}
	out := make([]float64, req.Size)
	for i := range out {
		x, err := gen(i)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", req.Name, i, err)
		}
		out[i] = x
	}
	return out, nil
}
