package state

import (
	"fmt"
	"math"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Snapshot is a deep copy of the environment and agent namespaces. Substep
// scratch is never part of a snapshot.
type Snapshot struct {
	environment map[string]*Variable
	groups      map[string]*AgentGroup
	groupOrder  []string
}

// Snapshot captures the persistent namespaces.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		environment: make(map[string]*Variable, len(s.environment)),
		groups:      make(map[string]*AgentGroup, len(s.groups)),
		groupOrder:  slices.Clone(s.groupOrder),
	}
	for k, v := range s.environment {
		snap.environment[k] = v.Clone()
	}
	for k, g := range s.groups {
		snap.groups[k] = g.Clone()
	}
	return snap
}

// Restore replaces the persistent namespaces with copies from snap and clears
// scratch and pending bounds reports. snap stays usable for later restores.
func (s *Store) Restore(snap *Snapshot) {
	s.environment = make(map[string]*Variable, len(snap.environment))
	for k, v := range snap.environment {
		s.environment[k] = v.Clone()
	}
	s.groups = make(map[string]*AgentGroup, len(snap.groups))
	for k, g := range snap.groups {
		s.groups[k] = g.Clone()
	}
	s.groupOrder = slices.Clone(snap.groupOrder)
	s.scratch = make(map[string]any)
	s.bounds = nil
}

// FromSnapshot builds a new store holding a copy of snap.
func FromSnapshot(snap *Snapshot) *Store {
	s := New()
	s.Restore(snap)
	return s
}

// MarshalJSON encodes the snapshot through cty's JSON encoding:
//
//	{
//	  "environment": {"<name>": {"dtype": "float", "shape": [3], "learnable": false, "value": [...]}},
//	  "agents": {"<group>": {"number": 2, "properties": {"<name>": {... "shape": [2, 1] ...}}}},
//	  "group_order": ["<group>"]
//	}
//
// Agent properties are encoded as gathered columns.
func (snap *Snapshot) MarshalJSON() ([]byte, error) {
	env := make(map[string]cty.Value, len(snap.environment))
	for name, v := range snap.environment {
		enc, err := encodeVariable(v)
		if err != nil {
			return nil, err
		}
		env[name] = enc
	}

	groups := make(map[string]cty.Value, len(snap.groups))
	for name, g := range snap.groups {
		props := make(map[string]cty.Value)
		for _, prop := range g.Properties() {
			col, err := g.Column(prop)
			if err != nil {
				return nil, err
			}
			enc, err := encodeVariable(col)
			if err != nil {
				return nil, err
			}
			props[prop] = enc
		}
		groups[name] = cty.ObjectVal(map[string]cty.Value{
			"number":     cty.NumberIntVal(int64(g.Len())),
			"properties": objectOrEmpty(props),
		})
	}

	order := make([]cty.Value, len(snap.groupOrder))
	for i, name := range snap.groupOrder {
		order[i] = cty.StringVal(name)
	}

	val := cty.ObjectVal(map[string]cty.Value{
		"environment": objectOrEmpty(env),
		"agents":      objectOrEmpty(groups),
		"group_order": cty.TupleVal(order),
	})
	return ctyjson.Marshal(val, val.Type())
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (snap *Snapshot) UnmarshalJSON(buf []byte) error {
	ty, err := ctyjson.ImpliedType(buf)
	if err != nil {
		return fmt.Errorf("decoding state snapshot: %w", err)
	}
	val, err := ctyjson.Unmarshal(buf, ty)
	if err != nil {
		return fmt.Errorf("decoding state snapshot: %w", err)
	}
	if !val.Type().IsObjectType() {
		return fmt.Errorf("decoding state snapshot: expected an object, got %s", val.Type().FriendlyName())
	}

	out := Snapshot{
		environment: make(map[string]*Variable),
		groups:      make(map[string]*AgentGroup),
	}

	if attr, ok := objectAttr(val, "environment"); ok {
		for it := attr.ElementIterator(); it.Next(); {
			k, raw := it.Element()
			v, err := decodeVariable(k.AsString(), raw)
			if err != nil {
				return err
			}
			out.environment[v.Name] = v
		}
	}

	if attr, ok := objectAttr(val, "agents"); ok {
		for it := attr.ElementIterator(); it.Next(); {
			k, raw := it.Element()
			g, err := decodeGroup(k.AsString(), raw)
			if err != nil {
				return err
			}
			out.groups[g.Name] = g
		}
	}

	if attr, ok := objectAttr(val, "group_order"); ok {
		for it := attr.ElementIterator(); it.Next(); {
			_, name := it.Element()
			if name.Type() != cty.String {
				return fmt.Errorf("decoding state snapshot: group_order must hold strings")
			}
			if _, known := out.groups[name.AsString()]; !known {
				return fmt.Errorf("decoding state snapshot: group_order names unknown group %q", name.AsString())
			}
			out.groupOrder = append(out.groupOrder, name.AsString())
		}
	}
	if len(out.groupOrder) != len(out.groups) {
		return fmt.Errorf("decoding state snapshot: group_order lists %d groups, agents holds %d", len(out.groupOrder), len(out.groups))
	}

	*snap = out
	return nil
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}

func objectAttr(obj cty.Value, name string) (cty.Value, bool) {
	if !obj.Type().IsObjectType() || !obj.Type().HasAttribute(name) {
		return cty.NilVal, false
	}
	v := obj.GetAttr(name)
	if v.IsNull() {
		return cty.NilVal, false
	}
	return v, true
}

func encodeVariable(v *Variable) (cty.Value, error) {
	shape := make([]cty.Value, len(v.Shape))
	for i, d := range v.Shape {
		shape[i] = cty.NumberIntVal(int64(d))
	}

	data := make([]cty.Value, v.Len())
	switch v.DType {
	case Int:
		for i, x := range v.ints {
			data[i] = cty.NumberIntVal(x)
		}
	case Float:
		for i, x := range v.floats {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return cty.NilVal, fmt.Errorf("encoding %s: element %d is not a finite number", v.Name, i)
			}
			data[i] = cty.NumberFloatVal(x)
		}
	default:
		for i, x := range v.strs {
			data[i] = cty.StringVal(x)
		}
	}

	return cty.ObjectVal(map[string]cty.Value{
		"dtype":     cty.StringVal(string(v.DType)),
		"shape":     cty.TupleVal(shape),
		"learnable": cty.BoolVal(v.Learnable),
		"value":     cty.TupleVal(data),
	}), nil
}

type encodedVariable struct {
	dtype     DType
	shape     []int
	learnable bool
	value     cty.Value
}

func decodeVariableHeader(name string, raw cty.Value) (*encodedVariable, error) {
	if !raw.Type().IsObjectType() {
		return nil, fmt.Errorf("decoding %s: expected an object", name)
	}
	out := &encodedVariable{}

	dt, ok := objectAttr(raw, "dtype")
	if !ok || dt.Type() != cty.String {
		return nil, fmt.Errorf("decoding %s: missing dtype", name)
	}
	dtype, err := ParseDType(dt.AsString())
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	out.dtype = dtype

	if sh, ok := objectAttr(raw, "shape"); ok {
		for it := sh.ElementIterator(); it.Next(); {
			_, d := it.Element()
			var dim int
			if err := gocty.FromCtyValue(d, &dim); err != nil {
				return nil, fmt.Errorf("decoding %s shape: %w", name, err)
			}
			out.shape = append(out.shape, dim)
		}
	}
	if l, ok := objectAttr(raw, "learnable"); ok {
		if err := gocty.FromCtyValue(l, &out.learnable); err != nil {
			return nil, fmt.Errorf("decoding %s learnable: %w", name, err)
		}
	}
	val, ok := objectAttr(raw, "value")
	if !ok {
		return nil, fmt.Errorf("decoding %s: missing value", name)
	}
	out.value = val
	return out, nil
}

func decodeVariable(name string, raw cty.Value) (*Variable, error) {
	h, err := decodeVariableHeader(name, raw)
	if err != nil {
		return nil, err
	}
	v, err := NewVariable(name, h.dtype, h.shape)
	if err != nil {
		return nil, err
	}
	v.Learnable = h.learnable
	if err := assignCty(v, h.value); err != nil {
		return nil, err
	}
	return v, nil
}

// assignCty loads a JSON-decoded tuple of scalars into v.
func assignCty(v *Variable, val cty.Value) error {
	if !val.CanIterateElements() {
		return fmt.Errorf("decoding %s: value must be a list", v.Name)
	}
	if n := val.LengthInt(); n != v.Len() {
		return fmt.Errorf("%w: decoding %s: shape %v needs %d elements, got %d", ErrTypeMismatch, v.Name, v.Shape, v.Len(), n)
	}
	i := 0
	for it := val.ElementIterator(); it.Next(); i++ {
		_, el := it.Element()
		var err error
		switch v.DType {
		case Int:
			err = gocty.FromCtyValue(el, &v.ints[i])
		case Float:
			err = gocty.FromCtyValue(el, &v.floats[i])
		default:
			err = gocty.FromCtyValue(el, &v.strs[i])
		}
		if err != nil {
			return fmt.Errorf("decoding %s[%d]: %w", v.Name, i, err)
		}
	}
	return nil
}

func decodeGroup(name string, raw cty.Value) (*AgentGroup, error) {
	numVal, ok := objectAttr(raw, "number")
	if !ok {
		return nil, fmt.Errorf("decoding agent group %q: missing number", name)
	}
	var n int
	if err := gocty.FromCtyValue(numVal, &n); err != nil {
		return nil, fmt.Errorf("decoding agent group %q: %w", name, err)
	}
	g, err := NewAgentGroup(name, n)
	if err != nil {
		return nil, err
	}

	props, ok := objectAttr(raw, "properties")
	if !ok {
		return g, nil
	}
	for it := props.ElementIterator(); it.Next(); {
		k, praw := it.Element()
		prop := k.AsString()
		col, err := decodeVariable(prop, praw)
		if err != nil {
			return nil, fmt.Errorf("decoding agent group %q: %w", name, err)
		}
		if len(col.Shape) < 2 || col.Shape[0] != n {
			return nil, fmt.Errorf("decoding agent group %q: property %q shape %v does not start with the agent count %d", name, prop, col.Shape, n)
		}
		if err := g.AddProperty(prop, col.DType, col.Shape, col.Learnable); err != nil {
			return nil, err
		}
		if err := g.SetColumn(prop, col); err != nil {
			return nil, err
		}
	}
	return g, nil
}
