package initializers

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

// Constant fills every element with the `value` argument.
func Constant(_ context.Context, req registry.InitRequest) (any, error) {
	raw, ok := req.Arguments["value"]
	if !ok || raw.IsNull() {
		return nil, fmt.Errorf("%s: constant requires a value argument", req.Name)
	}
	if len(req.Arguments) > 1 {
		return nil, fmt.Errorf("%s: constant accepts only a value argument", req.Name)
	}
	leaves, err := config.Flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if len(leaves) != 1 {
		return nil, fmt.Errorf("%s: constant value must be a scalar", req.Name)
	}

	if req.DType == state.String {
		s, err := config.Strings(leaves)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Name, err)
		}
		out := make([]string, req.Size)
		for i := range out {
			out[i] = s[0]
		}
		return out, nil
	}
	f, err := config.Floats(leaves)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return fill(req, func(int) (float64, error) { return f[0], nil })
}

type sequenceArgs struct {
	Start float64 `cty:"start"`
	Step  float64 `cty:"step"`
}

// Sequence fills element i with start + i*step. Defaults give 0, 1, 2, ...
func Sequence(_ context.Context, req registry.InitRequest) (any, error) {
	args := sequenceArgs{Start: 0, Step: 1}
	if err := stage.DecodeArguments(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return fill(req, func(i int) (float64, error) {
		return args.Start + float64(i)*args.Step, nil
	})
}

type uniformArgs struct {
	Low  float64 `cty:"low"`
	High float64 `cty:"high"`
}

// Uniform draws from [low, high). Int variables draw integers from
// [low, high] inclusive.
func Uniform(_ context.Context, req registry.InitRequest) (any, error) {
	args := uniformArgs{Low: 0, High: 1}
	if err := stage.DecodeArguments(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if args.High < args.Low {
		return nil, fmt.Errorf("%s: uniform high %v is below low %v", req.Name, args.High, args.Low)
	}
	if req.Rand == nil {
		return nil, fmt.Errorf("%s: uniform needs a random source", req.Name)
	}

	if req.DType == state.Int {
		lo, hi := math.Ceil(args.Low), math.Floor(args.High)
		if hi < lo {
			return nil, fmt.Errorf("%s: no integer in [%v, %v]", req.Name, args.Low, args.High)
		}
		span := int64(hi-lo) + 1
		return fill(req, func(int) (float64, error) {
			return lo + float64(req.Rand.Int64N(span)), nil
		})
	}
	return fill(req, func(int) (float64, error) {
		return args.Low + req.Rand.Float64()*(args.High-args.Low), nil
	})
}

type normalArgs struct {
	Mean float64 `cty:"mean"`
	Std  float64 `cty:"std"`
}

// Normal draws from a normal distribution. Int variables round each draw.
func Normal(_ context.Context, req registry.InitRequest) (any, error) {
	args := normalArgs{Mean: 0, Std: 1}
	if err := stage.DecodeArguments(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if args.Std < 0 {
		return nil, fmt.Errorf("%s: normal std must not be negative, got %v", req.Name, args.Std)
	}
	if req.Rand == nil {
		return nil, fmt.Errorf("%s: normal needs a random source", req.Name)
	}
	return fill(req, func(int) (float64, error) {
		x := args.Mean + req.Rand.NormFloat64()*args.Std
		if req.DType == state.Int {
			x = math.Round(x)
		}
		return x, nil
	})
}
