package runner

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/state"
)

// initTarget is a variable whose data comes from a named initializer. These
// are re-drawn on every reset.
type initTarget struct {
	group string // empty for environment variables
	decl  *config.Variable
}

func (t initTarget) path() string {
	if t.group == "" {
		return "environment/" + t.decl.Name
	}
	return "agents/" + t.group + "/" + t.decl.Name
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1^0x9e3779b97f4a7c15))
}

// buildStore declares every configured variable and fills it from its
// literal value or initializer.
func (r *Runner) buildStore(ctx context.Context, m *config.Model) (*state.Store, []initTarget, error) {
	s := state.New()
	var targets []initTarget

	for _, decl := range m.Environment {
		dtype, err := state.ParseDType(decl.DType)
		if err != nil {
			return nil, nil, config.Errorf("environment %q: %v", decl.Name, err)
		}
		v, err := state.NewVariable(decl.Name, dtype, decl.Shape)
		if err != nil {
			return nil, nil, config.Errorf("environment: %v", err)
		}
		v.Learnable = decl.Learnable
		if err := s.DeclareEnvironment(v); err != nil {
			return nil, nil, err
		}
		if decl.Initializer != "" {
			targets = append(targets, initTarget{decl: decl})
			continue
		}
		data, err := literal(decl, v.Len(), 1)
		if err != nil {
			return nil, nil, config.Errorf("environment %q: %v", decl.Name, err)
		}
		if err := v.Assign(data); err != nil {
			return nil, nil, config.Errorf("environment %q: %v", decl.Name, err)
		}
	}

	for _, gdecl := range m.Agents {
		g, err := state.NewAgentGroup(gdecl.Name, gdecl.Number)
		if err != nil {
			return nil, nil, config.Errorf("%v", err)
		}
		for _, decl := range gdecl.Properties {
			dtype, err := state.ParseDType(decl.DType)
			if err != nil {
				return nil, nil, config.Errorf("agents %q property %q: %v", gdecl.Name, decl.Name, err)
			}
			if err := g.AddProperty(decl.Name, dtype, decl.Shape, decl.Learnable); err != nil {
				return nil, nil, config.Errorf("%v", err)
			}
			if decl.Initializer != "" {
				targets = append(targets, initTarget{group: gdecl.Name, decl: decl})
				continue
			}
			col, err := g.Column(decl.Name)
			if err != nil {
				return nil, nil, err
			}
			data, err := literal(decl, col.Len(), g.Len())
			if err != nil {
				return nil, nil, config.Errorf("agents %q property %q: %v", gdecl.Name, decl.Name, err)
			}
			if err := g.SetColumn(decl.Name, data); err != nil {
				return nil, nil, config.Errorf("agents %q property %q: %v", gdecl.Name, decl.Name, err)
			}
		}
		if err := s.DeclareGroup(g); err != nil {
			return nil, nil, err
		}
	}

	if err := r.draw(ctx, s, targets); err != nil {
		return nil, nil, err
	}
	return s, targets, nil
}

// literal converts a configured value into size elements. A single element
// is broadcast to every position; a per-agent value (size/agents elements)
// is repeated for every agent.
func literal(decl *config.Variable, size, agents int) (any, error) {
	leaves, err := config.Flatten(decl.Value)
	if err != nil {
		return nil, err
	}
	n := len(leaves)
	switch {
	case n == size:
	case n == 1 || (agents > 1 && n*agents == size):
		out := leaves
		for len(out) < size {
			out = append(out, leaves...)
		}
		leaves = out
	default:
		return nil, fmt.Errorf("value has %d elements, shape %v needs %d", n, decl.Shape, size)
	}

	if decl.DType == string(state.String) {
		return config.Strings(leaves)
	}
	return config.Floats(leaves)
}

// draw runs the initializer of every target against the runner's random
// source, in declaration order.
func (r *Runner) draw(ctx context.Context, s *state.Store, targets []initTarget) error {
	logger := ctxlog.FromContext(ctx)
	for _, t := range targets {
		fn, err := r.reg.Initializer(t.decl.Initializer)
		if err != nil {
			return fmt.Errorf("%s: %w", t.path(), err)
		}

		var dst *state.Variable
		if t.group == "" {
			dst, err = s.Env(t.decl.Name)
		} else {
			var g *state.AgentGroup
			if g, err = s.Group(t.group); err == nil {
				dst, err = g.Column(t.decl.Name)
			}
		}
		if err != nil {
			return err
		}

		req := registry.InitRequest{
			Name:      t.path(),
			DType:     dst.DType,
			Shape:     dst.Shape,
			Size:      dst.Len(),
			Arguments: t.decl.Arguments,
			Rand:      r.rng,
			BaseDir:   r.baseDir,
		}
		data, err := fn(ctx, req)
		if err != nil {
			return fmt.Errorf("initializer %q for %s: %w", t.decl.Initializer, t.path(), err)
		}
		if err := s.Set(t.path(), data); err != nil {
			return fmt.Errorf("initializer %q for %s: %w", t.decl.Initializer, t.path(), err)
		}
		logger.Debug("Initialized variable.", "path", t.path(), "initializer", t.decl.Initializer, "size", req.Size)
	}
	return nil
}
