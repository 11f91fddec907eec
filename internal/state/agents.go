package state

import (
	"fmt"
	"slices"
	"sort"
)

// Agent is one record in an agent group. Its attributes are typed variables
// whose shape is the per-agent part of the group's declared property shape.
type Agent struct {
	Index int
	attrs map[string]*Variable
}

// Attr returns the live variable for an attribute.
func (a *Agent) Attr(name string) (*Variable, error) {
	v, ok := a.attrs[name]
	if !ok {
		return nil, pathNotFound(fmt.Sprintf("agent[%d]/%s", a.Index, name))
	}
	return v, nil
}

// Number reads a scalar numeric attribute.
func (a *Agent) Number(name string) (float64, error) {
	v, err := a.Attr(name)
	if err != nil {
		return 0, err
	}
	return v.Number(0)
}

// NumberOr reads a scalar numeric attribute, falling back to def when the
// group does not declare it.
func (a *Agent) NumberOr(name string, def float64) float64 {
	v, ok := a.attrs[name]
	if !ok {
		return def
	}
	x, err := v.Number(0)
	if err != nil {
		return def
	}
	return x
}

// SetNumber writes the first element of a numeric attribute.
func (a *Agent) SetNumber(name string, x float64) error {
	v, err := a.Attr(name)
	if err != nil {
		return err
	}
	return v.SetNumber(0, x)
}

func (a *Agent) clone() *Agent {
	out := &Agent{Index: a.Index, attrs: make(map[string]*Variable, len(a.attrs))}
	for k, v := range a.attrs {
		out.attrs[k] = v.Clone()
	}
	return out
}

// property is the group-level declaration of an agent attribute.
type property struct {
	dtype     DType
	shape     []int // per-agent shape
	learnable bool
}

// AgentGroup is an ordered, fixed-size collection of agents sharing a schema.
type AgentGroup struct {
	Name   string
	Agents []*Agent
	props  map[string]property
}

// NewAgentGroup creates a group of n agents with no properties.
func NewAgentGroup(name string, n int) (*AgentGroup, error) {
	if n <= 0 {
		return nil, fmt.Errorf("agent group %q: number must be positive, got %d", name, n)
	}
	g := &AgentGroup{Name: name, Agents: make([]*Agent, n), props: make(map[string]property)}
	for i := range g.Agents {
		g.Agents[i] = &Agent{Index: i, attrs: make(map[string]*Variable)}
	}
	return g, nil
}

// Len returns the number of agents.
func (g *AgentGroup) Len() int { return len(g.Agents) }

// AddProperty declares an attribute on every agent. shape is the full
// declared shape; a leading dimension equal to the group size is treated as
// the agent axis and stripped.
func (g *AgentGroup) AddProperty(name string, dtype DType, shape []int, learnable bool) error {
	if _, exists := g.props[name]; exists {
		return fmt.Errorf("agent group %q: property %q declared twice", g.Name, name)
	}
	per := perAgentShape(shape, g.Len())
	for _, a := range g.Agents {
		v, err := NewVariable(name, dtype, per)
		if err != nil {
			return fmt.Errorf("agent group %q: %w", g.Name, err)
		}
		v.Learnable = learnable
		a.attrs[name] = v
	}
	g.props[name] = property{dtype: dtype, shape: per, learnable: learnable}
	return nil
}

func perAgentShape(shape []int, n int) []int {
	if len(shape) > 1 && shape[0] == n {
		return slices.Clone(shape[1:])
	}
	if len(shape) == 1 && shape[0] == n {
		return []int{1}
	}
	if len(shape) == 0 {
		return []int{1}
	}
	return slices.Clone(shape)
}

// Properties returns the declared attribute names in sorted order.
func (g *AgentGroup) Properties() []string {
	names := make([]string, 0, len(g.props))
	for k := range g.props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// HasProperty reports whether an attribute is declared.
func (g *AgentGroup) HasProperty(name string) bool {
	_, ok := g.props[name]
	return ok
}

// Column gathers an attribute across all agents into a new variable of shape
// [N, per-agent shape...].
func (g *AgentGroup) Column(name string) (*Variable, error) {
	p, ok := g.props[name]
	if !ok {
		return nil, pathNotFound(fmt.Sprintf("agents/%s/%s", g.Name, name))
	}
	col, err := NewVariable(name, p.dtype, append([]int{g.Len()}, p.shape...))
	if err != nil {
		return nil, err
	}
	col.Learnable = p.learnable
	stride := 1
	for _, d := range p.shape {
		stride *= d
	}
	for i, a := range g.Agents {
		src := a.attrs[name]
		switch p.dtype {
		case Int:
			copy(col.ints[i*stride:], src.ints)
		case Float:
			copy(col.floats[i*stride:], src.floats)
		default:
			copy(col.strs[i*stride:], src.strs)
		}
	}
	return col, nil
}

// SetColumn scatters a column (as accepted by Variable.Assign) back into the
// agent records.
func (g *AgentGroup) SetColumn(name string, data any) error {
	col, err := g.Column(name)
	if err != nil {
		return err
	}
	if err := col.Assign(data); err != nil {
		return err
	}
	stride := col.Len() / g.Len()
	for i, a := range g.Agents {
		dst := a.attrs[name]
		switch col.DType {
		case Int:
			copy(dst.ints, col.ints[i*stride:(i+1)*stride])
		case Float:
			copy(dst.floats, col.floats[i*stride:(i+1)*stride])
		default:
			copy(dst.strs, col.strs[i*stride:(i+1)*stride])
		}
	}
	return nil
}

// Agent returns the record at index i.
func (g *AgentGroup) Agent(i int) (*Agent, error) {
	if i < 0 || i >= g.Len() {
		return nil, &BoundsError{Path: "agents/" + g.Name, Index: i, Len: g.Len()}
	}
	return g.Agents[i], nil
}

// Clone returns a deep copy of the group.
func (g *AgentGroup) Clone() *AgentGroup {
	out := &AgentGroup{Name: g.Name, Agents: make([]*Agent, len(g.Agents)), props: make(map[string]property, len(g.props))}
	for i, a := range g.Agents {
		out.Agents[i] = a.clone()
	}
	for k, p := range g.props {
		out.props[k] = property{dtype: p.dtype, shape: slices.Clone(p.shape), learnable: p.learnable}
	}
	return out
}
