package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
	"github.com/vk/substepgrid/internal/statepath"
)

// ErrMissingTransition is returned when a substep has no registered transition.
var ErrMissingTransition = errors.New("missing transition")

// Substep is one resolved entry of the pipeline. Observation and Policy are
// nil when the substep has no registered stage for them.
type Substep struct {
	Key         string
	Name        string
	Observation stage.Stage
	Policy      stage.Stage
	Transition  stage.Stage
	// carry lists scratch keys read by this substep but produced elsewhere;
	// they survive the scratch reset that precedes the substep.
	carry []string
}

// Stages returns the configured stages in execution order.
func (s *Substep) Stages() []stage.Stage {
	var out []stage.Stage
	for _, st := range []stage.Stage{s.Observation, s.Policy, s.Transition} {
		if st != nil {
			out = append(out, st)
		}
	}
	return out
}

// Carry returns the scratch keys kept across the reset preceding this substep.
func (s *Substep) Carry() []string {
	return slices.Clone(s.carry)
}

// Pipeline is the ordered list of substeps executed once per step.
type Pipeline struct {
	substeps []*Substep
}

// Build resolves every configured phase through the registry.
func Build(reg *registry.Registry, substeps []*config.Substep) (*Pipeline, error) {
	p := &Pipeline{}
	for _, cfg := range substeps {
		s, err := buildSubstep(reg, cfg)
		if err != nil {
			return nil, err
		}
		p.substeps = append(p.substeps, s)
	}
	return p, nil
}

func buildSubstep(reg *registry.Registry, cfg *config.Substep) (*Substep, error) {
	s := &Substep{Key: cfg.Key, Name: cfg.Name}
	if s.Name == "" {
		s.Name = cfg.Key
	}

	var err error
	if phase, ok := resolvePhase(reg, s.Name, stage.Observation, cfg.Observation); ok {
		if s.Observation, err = buildStage(reg, cfg, stage.Observation, phase); err != nil {
			return nil, err
		}
	}
	if phase, ok := resolvePhase(reg, s.Name, stage.Policy, cfg.Policy); ok {
		if s.Policy, err = buildStage(reg, cfg, stage.Policy, phase); err != nil {
			return nil, err
		}
	}
	if !reg.Has(s.Name, stage.Transition) {
		return nil, fmt.Errorf("substep %q: %w: no transition registered for %q", cfg.Key, ErrMissingTransition, s.Name)
	}
	phase := cfg.Transition
	if phase == nil {
		phase = &config.Phase{}
	}
	if s.Transition, err = buildStage(reg, cfg, stage.Transition, phase); err != nil {
		return nil, err
	}

	s.carry = carryKeys(s.Stages())
	return s, nil
}

// resolvePhase reports whether an optional phase should be built. A configured
// block always is, so an unregistered one surfaces as ErrUnknownStage. A
// registered phase without a block runs with defaults.
func resolvePhase(reg *registry.Registry, name string, kind stage.Kind, phase *config.Phase) (*config.Phase, bool) {
	if phase != nil {
		return phase, true
	}
	if reg.Has(name, kind) {
		return &config.Phase{}, true
	}
	return nil, false
}

func buildStage(reg *registry.Registry, cfg *config.Substep, kind stage.Kind, phase *config.Phase) (stage.Stage, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Key
	}
	factory, err := reg.Resolve(name, kind)
	if err != nil {
		return nil, fmt.Errorf("substep %q: %w", cfg.Key, err)
	}
	spec := stage.Spec{
		Substep:      name,
		Kind:         kind,
		Inputs:       slices.Clone(phase.Inputs),
		Outputs:      slices.Clone(phase.Outputs),
		Arguments:    phase.Arguments,
		ActiveAgents: slices.Clone(cfg.ActiveAgents),
	}
	st, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: substep %q %s: %w", config.ErrConfig, cfg.Key, kind, err)
	}
	if err := st.Spec().Validate(); err != nil {
		return nil, fmt.Errorf("%w: substep %q: %w", config.ErrConfig, cfg.Key, err)
	}
	return st, nil
}

// carryKeys returns the scratch inputs of stages that none of them output.
func carryKeys(stages []stage.Stage) []string {
	produced := make(map[string]bool)
	for _, st := range stages {
		for _, k := range st.Spec().ScratchOutputs() {
			produced[k] = true
		}
	}
	var out []string
	for _, st := range stages {
		for _, k := range st.Spec().ScratchInputs() {
			if !produced[k] && !slices.Contains(out, k) {
				out = append(out, k)
			}
		}
	}
	return out
}

// Substeps returns the resolved substeps in execution order.
func (p *Pipeline) Substeps() []*Substep {
	return slices.Clone(p.substeps)
}

// ValidatePaths checks that every environment and agent path declared by a
// stage exists in s. Substep paths are not checked; they only exist while a
// step runs.
func (p *Pipeline) ValidatePaths(s *state.Store) error {
	var errs []error
	for _, sub := range p.substeps {
		for _, st := range sub.Stages() {
			spec := st.Spec()
			for _, raw := range append(slices.Clone(spec.Inputs), spec.Outputs...) {
				path, err := statepath.Parse(raw)
				if err != nil {
					errs = append(errs, fmt.Errorf("substep %q %s: %w", sub.Key, spec.Kind, err))
					continue
				}
				if path.Namespace == statepath.Substep {
					continue
				}
				if !s.Exists(path) {
					errs = append(errs, fmt.Errorf("substep %q %s: %w: %s", sub.Key, spec.Kind, state.ErrPathNotFound, raw))
				}
			}
		}
	}
	return errors.Join(errs...)
}
