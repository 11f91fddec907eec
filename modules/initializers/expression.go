package initializers

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

type exprArgs struct {
	Expression string `cty:"expression"`
}

// Expr evaluates an expr-lang expression once per element. The expression
// sees:
//
//	i          element index
//	agent      agent index (element index for environment variables)
//	n          total element count
//	rand()     uniform draw in [0, 1)
//	uniform(low, high), normal(mean, std)
//
// e.g. `expression = "agent % 2 == 0 ? 100 : uniform(50.0, 80.0)"`.
func Expr(_ context.Context, req registry.InitRequest) (any, error) {
	var args exprArgs
	if err := stage.DecodeArguments(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if args.Expression == "" {
		return nil, fmt.Errorf("%s: expr requires an expression argument", req.Name)
	}

	stride := 1
	if len(req.Shape) > 1 && req.Size > 0 {
		stride = req.Size / req.Shape[0]
	}
	env := newExprEnv(req)
	program, err := expr.Compile(args.Expression, expr.Env(env.values(0, stride)))
	if err != nil {
		return nil, fmt.Errorf("%s: compiling %q: %w", req.Name, args.Expression, err)
	}

	results := make([]any, req.Size)
	for i := range results {
		out, err := expr.Run(program, env.values(i, stride))
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", req.Name, i, err)
		}
		results[i] = out
	}

	if req.DType == state.String {
		strs := make([]string, len(results))
		for i, r := range results {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expression returned %T, want string", req.Name, i, r)
			}
			strs[i] = s
		}
		return strs, nil
	}
	return fill(req, func(i int) (float64, error) {
		return toFloat(results[i])
	})
}

type exprEnv struct {
	req registry.InitRequest
}

func newExprEnv(req registry.InitRequest) *exprEnv {
	return &exprEnv{req: req}
}

func (e *exprEnv) values(i, stride int) map[string]any {
	return map[string]any{
		"i":     i,
		"agent": i / stride,
		"n":     e.req.Size,
		"rand":  e.rand,
		"uniform": func(low, high float64) float64 {
			return low + e.rand()*(high-low)
		},
		"normal": func(mean, std float64) float64 {
			return mean + e.normal()*std
		},
	}
}

func (e *exprEnv) rand() float64 {
	if e.req.Rand == nil {
		return 0
	}
	return e.req.Rand.Float64()
}

func (e *exprEnv) normal() float64 {
	if e.req.Rand == nil {
		return 0
	}
	return e.req.Rand.NormFloat64()
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expression returned %T, want a number", v)
}
