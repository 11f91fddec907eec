package state

import (
	"fmt"
	"maps"
	"sort"

	"github.com/vk/substepgrid/internal/statepath"
)

// Store is the StateStore: environment variables, agent groups and the
// substep scratch namespace.
type Store struct {
	environment map[string]*Variable
	groups      map[string]*AgentGroup
	groupOrder  []string
	scratch     map[string]any
	bounds      []BoundsError
}

// New creates an empty store.
func New() *Store {
	return &Store{
		environment: make(map[string]*Variable),
		groups:      make(map[string]*AgentGroup),
		scratch:     make(map[string]any),
	}
}

// DeclareEnvironment adds an environment variable. It is only used while the
// store is being built; stages write through Set.
func (s *Store) DeclareEnvironment(v *Variable) error {
	if _, exists := s.environment[v.Name]; exists {
		return fmt.Errorf("environment variable %q declared twice", v.Name)
	}
	s.environment[v.Name] = v
	return nil
}

// DeclareGroup adds an agent group. Groups keep their declaration order.
func (s *Store) DeclareGroup(g *AgentGroup) error {
	if _, exists := s.groups[g.Name]; exists {
		return fmt.Errorf("agent group %q declared twice", g.Name)
	}
	s.groups[g.Name] = g
	s.groupOrder = append(s.groupOrder, g.Name)
	return nil
}

// Env returns the live environment variable with the given name.
func (s *Store) Env(name string) (*Variable, error) {
	v, ok := s.environment[name]
	if !ok {
		return nil, pathNotFound(statepath.EnvironmentKey(name).String())
	}
	return v, nil
}

// HasEnv reports whether an environment variable is declared.
func (s *Store) HasEnv(name string) bool {
	_, ok := s.environment[name]
	return ok
}

// EnvNames returns the declared environment variable names, sorted.
func (s *Store) EnvNames() []string {
	names := make([]string, 0, len(s.environment))
	for name := range s.environment {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the live agent group with the given name.
func (s *Store) Group(name string) (*AgentGroup, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, pathNotFound("agents/" + name)
	}
	return g, nil
}

// Groups returns agent group names in declaration order.
func (s *Store) Groups() []string {
	return append([]string(nil), s.groupOrder...)
}

// Scratch returns a substep value.
func (s *Store) Scratch(key string) (any, error) {
	v, ok := s.scratch[key]
	if !ok {
		return nil, pathNotFound(statepath.SubstepKey(key).String())
	}
	return v, nil
}

// PutScratch writes a substep value.
func (s *Store) PutScratch(key string, v any) {
	s.scratch[key] = v
}

// ScratchKeys returns the current substep keys in sorted order.
func (s *Store) ScratchKeys() []string {
	keys := make([]string, 0, len(s.scratch))
	for k := range s.scratch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScratchAs reads a substep value and asserts its type.
func ScratchAs[T any](s *Store, key string) (T, error) {
	var zero T
	raw, err := s.Scratch(key)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: substep/%s holds %T, want %T", ErrTypeMismatch, key, raw, zero)
	}
	return v, nil
}

// Get resolves a path. Environment keys and single-agent attributes return
// the live *Variable; agent columns return a gathered copy; groups return
// *AgentGroup; single agents return *Agent; bare namespaces return a shallow
// copy of their contents.
func (s *Store) Get(raw string) (any, error) {
	p, err := statepath.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.GetPath(p)
}

// GetPath is Get for an already parsed path.
func (s *Store) GetPath(p statepath.Path) (any, error) {
	switch p.Namespace {
	case statepath.Environment:
		if p.IsNamespace() {
			return maps.Clone(s.environment), nil
		}
		return s.Env(p.Key)
	case statepath.Substep:
		if p.IsNamespace() {
			return maps.Clone(s.scratch), nil
		}
		return s.Scratch(p.Key)
	case statepath.Agents:
		g, err := s.Group(p.Group)
		if err != nil {
			return nil, err
		}
		if p.HasIndex() {
			a, err := g.Agent(p.Index)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, err)
			}
			if p.IsNamespace() {
				return a, nil
			}
			return a.Attr(p.Key)
		}
		if p.IsNamespace() {
			return g, nil
		}
		return g.Column(p.Key)
	}
	return nil, pathNotFound(p.String())
}

// Set writes a value at a path. Substep keys are created on demand;
// environment and agent variables must already exist and the value must
// match their dtype and shape.
func (s *Store) Set(raw string, value any) error {
	p, err := statepath.Parse(raw)
	if err != nil {
		return err
	}
	return s.SetPath(p, value)
}

// SetPath is Set for an already parsed path.
func (s *Store) SetPath(p statepath.Path, value any) error {
	if p.IsNamespace() {
		return fmt.Errorf("cannot assign to namespace %s", p)
	}
	switch p.Namespace {
	case statepath.Substep:
		s.scratch[p.Key] = value
		return nil
	case statepath.Environment:
		v, err := s.Env(p.Key)
		if err != nil {
			return err
		}
		return v.Assign(value)
	case statepath.Agents:
		g, err := s.Group(p.Group)
		if err != nil {
			return err
		}
		if p.HasIndex() {
			a, err := g.Agent(p.Index)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrPathNotFound, err)
			}
			v, err := a.Attr(p.Key)
			if err != nil {
				return err
			}
			return v.Assign(value)
		}
		return g.SetColumn(p.Key, value)
	}
	return pathNotFound(p.String())
}

// Exists reports whether a path resolves without materializing its value.
func (s *Store) Exists(p statepath.Path) bool {
	switch p.Namespace {
	case statepath.Environment:
		return p.IsNamespace() || s.HasEnv(p.Key)
	case statepath.Substep:
		if p.IsNamespace() {
			return true
		}
		_, ok := s.scratch[p.Key]
		return ok
	case statepath.Agents:
		g, ok := s.groups[p.Group]
		if !ok {
			return false
		}
		if p.HasIndex() && (p.Index < 0 || p.Index >= g.Len()) {
			return false
		}
		return p.IsNamespace() || g.HasProperty(p.Key)
	}
	return false
}

// ResetSubstep clears the substep namespace, keeping only the listed keys.
func (s *Store) ResetSubstep(keep ...string) {
	if len(keep) == 0 {
		clear(s.scratch)
		return
	}
	kept := make(map[string]any, len(keep))
	for _, k := range keep {
		if v, ok := s.scratch[k]; ok {
			kept[k] = v
		}
	}
	s.scratch = kept
}

// ReportBounds records an out-of-range index that a stage skipped.
func (s *Store) ReportBounds(e BoundsError) {
	s.bounds = append(s.bounds, e)
}

// DrainBounds returns and clears the recorded bounds skips.
func (s *Store) DrainBounds() []BoundsError {
	out := s.bounds
	s.bounds = nil
	return out
}

// Paths returns every declared environment and agent column path, sorted.
func (s *Store) Paths() []string {
	var out []string
	for name := range s.environment {
		out = append(out, statepath.EnvironmentKey(name).String())
	}
	for _, gName := range s.groupOrder {
		for _, prop := range s.groups[gName].Properties() {
			out = append(out, statepath.AgentKey(gName, prop).String())
		}
	}
	sort.Strings(out)
	return out
}
