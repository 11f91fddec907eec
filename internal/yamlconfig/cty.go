package yamlconfig

import (
	"math"

	"github.com/vk/substepgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// ToCty converts a YAML node into the equivalent cty value: sequences become
// tuples, mappings become objects and scalars keep their resolved YAML type.
// An absent node yields a null value.
func ToCty(n *yaml.Node) (cty.Value, error) {
	if isAbsent(n) {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return ToCty(n.Content[0])
	case yaml.AliasNode:
		return ToCty(n.Alias)
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(n.Content))
		for i, c := range n.Content {
			v, err := ToCty(c)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = v
		}
		return cty.TupleVal(elems), nil
	case yaml.MappingNode:
		if len(n.Content) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := ToCty(n.Content[i+1])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[n.Content[i].Value] = v
		}
		return cty.ObjectVal(attrs), nil
	}

	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return cty.NilVal, config.Errorf("line %d: %v", n.Line, err)
		}
		return cty.BoolVal(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return cty.NilVal, config.Errorf("line %d: %v", n.Line, err)
		}
		return cty.NumberIntVal(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return cty.NilVal, config.Errorf("line %d: %v", n.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return cty.NilVal, config.Errorf("line %d: %q is not a finite number", n.Line, n.Value)
		}
		return cty.NumberFloatVal(f), nil
	}
	return cty.StringVal(n.Value), nil
}
