package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a simulation
// configuration.
type Model struct {
	Metadata    Metadata
	Environment []*Variable
	Agents      []*AgentGroup
	// Substeps run in this order on every step.
	Substeps []*Substep
}

// Metadata holds the `simulation_metadata` settings.
type Metadata struct {
	// Declared is set by loaders when a simulation_metadata block was present,
	// so a block holding only zero values still counts.
	Declared           bool
	NumEpisodes        int
	NumStepsPerEpisode int
	Calibration        bool
	// Seed drives every stochastic initializer. Nil means a random seed.
	Seed *int64
	// AtomicSteps rolls the state back to the pre-step snapshot when a step
	// fails.
	AtomicSteps bool
}

// Variable declares one environment property or one agent attribute.
type Variable struct {
	Name      string
	DType     string
	Shape     []int
	Learnable bool
	// Value is the literal initial value. It is null when an initializer is
	// used instead.
	Value       cty.Value
	Initializer string
	Arguments   map[string]cty.Value
}

// HasValue reports whether a literal value was configured.
func (v *Variable) HasValue() bool {
	return !v.Value.IsNull()
}

// AgentGroup declares a group of agents and their attributes.
type AgentGroup struct {
	Name       string
	Number     int
	Properties []*Variable
}

// Substep is one entry of the ordered substep list.
type Substep struct {
	// Key is the configuration key of the substep.
	Key string
	// Name selects the registered implementation. It defaults to Key.
	Name         string
	Description  string
	ActiveAgents []string
	Observation  *Phase
	Policy       *Phase
	Transition   *Phase
}

// Phase configures one phase of a substep. A nil *Phase means the phase has no
// block; a registered stage for it still runs with an empty Phase.
type Phase struct {
	Inputs    []string
	Outputs   []string
	Arguments map[string]cty.Value
}

// Lookup returns the named environment variable declaration.
func (m *Model) Lookup(name string) (*Variable, bool) {
	for _, v := range m.Environment {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Group returns the named agent group declaration.
func (m *Model) Group(name string) (*AgentGroup, bool) {
	for _, g := range m.Agents {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Merge appends the declarations of other into m. Metadata from other wins
// when m has not declared any yet.
func (m *Model) Merge(other *Model) {
	if !m.Metadata.Declared {
		m.Metadata = other.Metadata
	}
	m.Environment = append(m.Environment, other.Environment...)
	m.Agents = append(m.Agents, other.Agents...)
	m.Substeps = append(m.Substeps, other.Substeps...)
}
