package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/substepgrid/internal/statepath"
)

// ErrConfig marks malformed or incomplete configuration.
var ErrConfig = errors.New("invalid configuration")

// Errorf builds an error wrapping ErrConfig.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

var phaseNames = [...]string{"observation", "policy", "transition"}

var validDTypes = map[string]bool{"": true, "int": true, "float": true, "str": true}

// Validate checks the model for structural problems that can be detected
// without a registry. It reports every problem it finds at once.
func (m *Model) Validate() error {
	var errs []string

	if m.Metadata.NumEpisodes <= 0 {
		errs = append(errs, fmt.Sprintf("simulation_metadata: num_episodes must be positive, got %d", m.Metadata.NumEpisodes))
	}
	if m.Metadata.NumStepsPerEpisode <= 0 {
		errs = append(errs, fmt.Sprintf("simulation_metadata: num_steps_per_episode must be positive, got %d", m.Metadata.NumStepsPerEpisode))
	}

	seenEnv := make(map[string]bool)
	for _, v := range m.Environment {
		where := "environment " + v.Name
		if seenEnv[v.Name] {
			errs = append(errs, where+": declared more than once")
		}
		seenEnv[v.Name] = true
		errs = append(errs, validateVariable(where, v)...)
	}

	seenGroup := make(map[string]bool)
	for _, g := range m.Agents {
		where := "agents " + g.Name
		if seenGroup[g.Name] {
			errs = append(errs, where+": declared more than once")
		}
		seenGroup[g.Name] = true
		if g.Number <= 0 {
			errs = append(errs, fmt.Sprintf("%s: number must be positive, got %d", where, g.Number))
		}
		seenProp := make(map[string]bool)
		for _, p := range g.Properties {
			pwhere := where + " property " + p.Name
			if seenProp[p.Name] {
				errs = append(errs, pwhere+": declared more than once")
			}
			seenProp[p.Name] = true
			errs = append(errs, validateVariable(pwhere, p)...)
		}
	}

	if len(m.Substeps) == 0 {
		errs = append(errs, "substeps: at least one substep is required")
	}
	seenSubstep := make(map[string]bool)
	for _, s := range m.Substeps {
		where := "substep " + s.Key
		if s.Key == "" {
			errs = append(errs, "substep: key must not be empty")
		}
		if seenSubstep[s.Key] {
			errs = append(errs, where+": declared more than once")
		}
		seenSubstep[s.Key] = true
		for _, g := range s.ActiveAgents {
			if !seenGroup[g] {
				errs = append(errs, fmt.Sprintf("%s: active agent group %q is not declared", where, g))
			}
		}
		for i, ph := range []*Phase{s.Observation, s.Policy, s.Transition} {
			if ph == nil {
				continue
			}
			kind := phaseNames[i]
			for _, raw := range append(append([]string(nil), ph.Inputs...), ph.Outputs...) {
				if _, err := statepath.Parse(raw); err != nil {
					errs = append(errs, fmt.Sprintf("%s %s: %v", where, kind, err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrConfig, strings.Join(errs, "\n- "))
	}
	return nil
}

func validateVariable(where string, v *Variable) []string {
	var errs []string
	if v.Name == "" {
		errs = append(errs, where+": name must not be empty")
	}
	if !validDTypes[v.DType] {
		errs = append(errs, fmt.Sprintf("%s: unknown dtype %q", where, v.DType))
	}
	for _, d := range v.Shape {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: shape dimensions must be positive, got %v", where, v.Shape))
			break
		}
	}
	switch {
	case v.HasValue() && v.Initializer != "":
		errs = append(errs, where+": value and initializer are mutually exclusive")
	case !v.HasValue() && v.Initializer == "":
		errs = append(errs, where+": either value or initializer is required")
	}
	return errs
}
