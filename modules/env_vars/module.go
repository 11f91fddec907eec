// Package env_vars provides the "env_var" initializer, which fills a
// variable from a process environment variable. It lets one configuration
// be run with different parameters without editing it:
//
//	environment "restock_quantity" {
//	  dtype       = "float"
//	  initializer = "env_var"
//	  arguments   = { variable = "RESTOCK_QUANTITY", default = 10 }
//	}
package env_vars

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type args struct {
	Variable string  `cty:"variable"`
	Default  *string `cty:"default"`
}

// OnInitEnvVar reads the configured environment variable and broadcasts its
// value to every element. A numeric variable parses the value as a number.
func OnInitEnvVar(_ context.Context, req registry.InitRequest) (any, error) {
	var a args
	if err := stage.DecodeArguments(req.Arguments, &a); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if a.Variable == "" {
		return nil, fmt.Errorf("%s: env_var requires a variable argument", req.Name)
	}

	raw, ok := os.LookupEnv(a.Variable)
	switch {
	case ok:
	case a.Default != nil:
		raw = *a.Default
	default:
		return nil, fmt.Errorf("%s: environment variable %s is not set and no default is given", req.Name, a.Variable)
	}

	if req.DType == state.String {
		out := make([]string, req.Size)
		for i := range out {
			out[i] = raw
		}
		return out, nil
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %s=%q is not a number", req.Name, a.Variable, raw)
	}
	out := make([]float64, req.Size)
	for i := range out {
		out[i] = x
	}
	return out, nil
}

// Register registers the initializer with the engine.
func (m *Module) Register(r *registry.Registry) error {
	return r.RegisterInitializer("env_var", OnInitEnvVar)
}
