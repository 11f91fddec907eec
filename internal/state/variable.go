package state

import (
	"fmt"
	"math"
	"slices"
)

// DType is the declared element type of a Variable.
type DType string

const (
	Int    DType = "int"
	Float  DType = "float"
	String DType = "str"
)

// ParseDType validates a dtype name from configuration.
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case Int, Float, String:
		return DType(s), nil
	case "":
		return Float, nil
	}
	return "", fmt.Errorf("unknown dtype %q: must be one of int, float, str", s)
}

// Variable is a typed, shaped value. Data is stored flat in row-major order.
type Variable struct {
	Name      string
	DType     DType
	Shape     []int
	Learnable bool

	ints   []int64
	floats []float64
	strs   []string
}

// NewVariable creates a zero-filled variable. An empty shape means a scalar.
func NewVariable(name string, dtype DType, shape []int) (*Variable, error) {
	if len(shape) == 0 {
		shape = []int{1}
	}
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("variable %q: shape dimensions must be positive, got %v", name, shape)
		}
		size *= d
	}

	v := &Variable{Name: name, DType: dtype, Shape: slices.Clone(shape)}
	switch dtype {
	case Int:
		v.ints = make([]int64, size)
	case Float:
		v.floats = make([]float64, size)
	case String:
		v.strs = make([]string, size)
	default:
		return nil, fmt.Errorf("variable %q: unknown dtype %q", name, dtype)
	}
	return v, nil
}

// Len returns the number of elements.
func (v *Variable) Len() int {
	switch v.DType {
	case Int:
		return len(v.ints)
	case Float:
		return len(v.floats)
	default:
		return len(v.strs)
	}
}

// Floats returns the backing slice of a float variable, or nil.
func (v *Variable) Floats() []float64 { return v.floats }

// Ints returns the backing slice of an int variable, or nil.
func (v *Variable) Ints() []int64 { return v.ints }

// Strings returns the backing slice of a str variable, or nil.
func (v *Variable) Strings() []string { return v.strs }

// Numbers returns a numeric copy of an int or float variable.
func (v *Variable) Numbers() []float64 {
	switch v.DType {
	case Float:
		return slices.Clone(v.floats)
	case Int:
		out := make([]float64, len(v.ints))
		for i, x := range v.ints {
			out[i] = float64(x)
		}
		return out
	}
	return nil
}

// Number reads element i as a float64.
func (v *Variable) Number(i int) (float64, error) {
	if i < 0 || i >= v.Len() {
		return 0, &BoundsError{Path: v.Name, Index: i, Len: v.Len()}
	}
	switch v.DType {
	case Float:
		return v.floats[i], nil
	case Int:
		return float64(v.ints[i]), nil
	}
	return 0, fmt.Errorf("%w: %s is %s, not numeric", ErrTypeMismatch, v.Name, v.DType)
}

// Scalar reads a single-element numeric variable.
func (v *Variable) Scalar() (float64, error) {
	if v.Len() != 1 {
		return 0, fmt.Errorf("%w: %s has %d elements, want a scalar", ErrTypeMismatch, v.Name, v.Len())
	}
	return v.Number(0)
}

// SetNumber writes element i. Int variables round to the nearest integer.
func (v *Variable) SetNumber(i int, x float64) error {
	if i < 0 || i >= v.Len() {
		return &BoundsError{Path: v.Name, Index: i, Len: v.Len()}
	}
	switch v.DType {
	case Float:
		v.floats[i] = x
	case Int:
		v.ints[i] = int64(math.Round(x))
	default:
		return fmt.Errorf("%w: %s is %s, not numeric", ErrTypeMismatch, v.Name, v.DType)
	}
	return nil
}

// Assign replaces the variable's data. The new data must match the declared
// dtype and element count.
func (v *Variable) Assign(data any) error {
	switch d := data.(type) {
	case *Variable:
		if d.DType != v.DType {
			return fmt.Errorf("%w: cannot assign %s to %s variable %s", ErrTypeMismatch, d.DType, v.DType, v.Name)
		}
		switch d.DType {
		case Int:
			return v.assignInts(d.ints)
		case Float:
			return v.assignFloats(d.floats)
		default:
			return v.assignStrings(d.strs)
		}
	case []float64:
		return v.assignFloats(d)
	case []int64:
		return v.assignInts(d)
	case []int:
		conv := make([]int64, len(d))
		for i, x := range d {
			conv[i] = int64(x)
		}
		return v.assignInts(conv)
	case []string:
		return v.assignStrings(d)
	case float64:
		return v.assignFloats([]float64{d})
	case int:
		return v.assignInts([]int64{int64(d)})
	case int64:
		return v.assignInts([]int64{d})
	case string:
		return v.assignStrings([]string{d})
	}
	return fmt.Errorf("%w: unsupported value %T for %s", ErrTypeMismatch, data, v.Name)
}

func (v *Variable) checkLen(n int) error {
	if n != v.Len() {
		return fmt.Errorf("%w: %s has shape %v (%d elements), got %d", ErrTypeMismatch, v.Name, v.Shape, v.Len(), n)
	}
	return nil
}

func (v *Variable) assignFloats(d []float64) error {
	switch v.DType {
	case Float:
		if err := v.checkLen(len(d)); err != nil {
			return err
		}
		copy(v.floats, d)
		return nil
	case Int:
		// Numeric widening is only allowed when no precision is lost.
		if err := v.checkLen(len(d)); err != nil {
			return err
		}
		for i, x := range d {
			if x != math.Trunc(x) {
				return fmt.Errorf("%w: %s is int, got fractional value %v", ErrTypeMismatch, v.Name, x)
			}
			v.ints[i] = int64(x)
		}
		return nil
	}
	return fmt.Errorf("%w: cannot assign numbers to %s variable %s", ErrTypeMismatch, v.DType, v.Name)
}

func (v *Variable) assignInts(d []int64) error {
	switch v.DType {
	case Int:
		if err := v.checkLen(len(d)); err != nil {
			return err
		}
		copy(v.ints, d)
		return nil
	case Float:
		if err := v.checkLen(len(d)); err != nil {
			return err
		}
		for i, x := range d {
			v.floats[i] = float64(x)
		}
		return nil
	}
	return fmt.Errorf("%w: cannot assign numbers to %s variable %s", ErrTypeMismatch, v.DType, v.Name)
}

func (v *Variable) assignStrings(d []string) error {
	if v.DType != String {
		return fmt.Errorf("%w: cannot assign strings to %s variable %s", ErrTypeMismatch, v.DType, v.Name)
	}
	if err := v.checkLen(len(d)); err != nil {
		return err
	}
	copy(v.strs, d)
	return nil
}

// Clone returns a deep copy.
func (v *Variable) Clone() *Variable {
	return &Variable{
		Name:      v.Name,
		DType:     v.DType,
		Shape:     slices.Clone(v.Shape),
		Learnable: v.Learnable,
		ints:      slices.Clone(v.ints),
		floats:    slices.Clone(v.floats),
		strs:      slices.Clone(v.strs),
	}
}

// Equal reports whether two variables have the same metadata and data.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Name == o.Name &&
		v.DType == o.DType &&
		v.Learnable == o.Learnable &&
		slices.Equal(v.Shape, o.Shape) &&
		slices.Equal(v.ints, o.ints) &&
		slices.Equal(v.floats, o.floats) &&
		slices.Equal(v.strs, o.strs)
}
