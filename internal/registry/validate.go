package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/stage"
)

// ValidateModel performs a parity check between the configuration and the
// registered Go code: every configured observation and policy phase must
// resolve, and every initializer named by an environment variable or agent
// property must exist. Missing transitions are reported by pipeline.Build.
func (r *Registry) ValidateModel(ctx context.Context, m *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	for _, s := range m.Substeps {
		phases := []*config.Phase{s.Observation, s.Policy}
		for i, kind := range []stage.Kind{stage.Observation, stage.Policy} {
			configured := phases[i] != nil
			registered := r.Has(s.Name, kind)
			switch {
			case configured && !registered:
				errs = append(errs, fmt.Errorf("substep %q: %w: %s/%s", s.Key, ErrUnknownStage, s.Name, kind))
			case !configured && registered:
				logger.Debug("Registered phase is not configured and will run with defaults.", "substep", s.Key, "kind", kind.String())
			}
		}
	}

	check := func(where, name string) {
		if name == "" {
			return
		}
		if _, err := r.Initializer(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}
	for _, v := range m.Environment {
		check("environment "+v.Name, v.Initializer)
	}
	for _, g := range m.Agents {
		for _, p := range g.Properties {
			check("agents "+g.Name+" property "+p.Name, p.Initializer)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	return nil
}
