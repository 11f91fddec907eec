package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Flatten walks nested lists, tuples and sets in row-major order and returns
// their scalar leaves. A scalar yields a single element.
func Flatten(val cty.Value) ([]cty.Value, error) {
	if val.IsNull() {
		return nil, fmt.Errorf("value is null")
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := val.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		if !ty.IsPrimitiveType() {
			return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
		}
		return []cty.Value{val}, nil
	}
	var out []cty.Value
	for it := val.ElementIterator(); it.Next(); {
		_, el := it.Element()
		leaves, err := Flatten(el)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// Floats converts scalar values to float64.
func Floats(vals []cty.Value) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		n, err := convert.Convert(v, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if err := gocty.FromCtyValue(n, &out[i]); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// Strings converts scalar values to strings.
func Strings(vals []cty.Value) ([]string, error) {
	out := make([]string, len(vals))
	for i, v := range vals {
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = s.AsString()
	}
	return out, nil
}
