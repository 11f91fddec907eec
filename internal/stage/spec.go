package stage

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/vk/substepgrid/internal/statepath"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Spec is the declaration of a stage instance.
type Spec struct {
	// Substep is the registry key of the substep the stage belongs to.
	Substep string
	Kind    Kind
	Inputs  []string
	Outputs []string
	// Arguments holds the configured options, e.g. {"threshold": 10}.
	Arguments    map[string]cty.Value
	ActiveAgents []string
}

// WithPaths fills Inputs and Outputs with the stage's own defaults when the
// configuration did not declare them.
func (s Spec) WithPaths(inputs, outputs []string) Spec {
	if len(s.Inputs) == 0 {
		s.Inputs = slices.Clone(inputs)
	}
	if len(s.Outputs) == 0 {
		s.Outputs = slices.Clone(outputs)
	}
	return s
}

// Validate checks that every declared path parses and that declared outputs
// respect the phase rules: observations write only substep values, policies
// never write environment values.
func (s Spec) Validate() error {
	var errs []error
	for _, raw := range s.Inputs {
		if _, err := statepath.Parse(raw); err != nil {
			errs = append(errs, fmt.Errorf("input: %w", err))
		}
	}
	for _, raw := range s.Outputs {
		p, err := statepath.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("output: %w", err))
			continue
		}
		switch {
		case s.Kind == Observation && p.Namespace != statepath.Substep:
			errs = append(errs, fmt.Errorf("output %s: observation stages may only write substep values", raw))
		case s.Kind == Policy && p.Namespace == statepath.Environment:
			errs = append(errs, fmt.Errorf("output %s: policy stages may not write environment values", raw))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s %s: %w", s.Substep, s.Kind, err)
	}
	return nil
}

// ScratchInputs returns the substep keys this stage reads.
func (s Spec) ScratchInputs() []string {
	return scratchKeys(s.Inputs)
}

// ScratchOutputs returns the substep keys this stage writes.
func (s Spec) ScratchOutputs() []string {
	return scratchKeys(s.Outputs)
}

func scratchKeys(paths []string) []string {
	var out []string
	for _, raw := range paths {
		p, err := statepath.Parse(raw)
		if err != nil || p.Namespace != statepath.Substep || p.IsNamespace() {
			continue
		}
		out = append(out, p.Key)
	}
	return out
}

// Decode copies Arguments into target. See DecodeArguments.
func (s Spec) Decode(target any) error {
	if err := DecodeArguments(s.Arguments, target); err != nil {
		return fmt.Errorf("%s %s: %w", s.Substep, s.Kind, err)
	}
	return nil
}

// DecodeArguments copies args into target, a pointer to a struct whose
// fields carry `cty:"name"` tags. Fields without a matching argument keep the
// value they already hold, so callers set defaults before decoding. Arguments
// that match no field are rejected.
func DecodeArguments(args map[string]cty.Value, target any) error {
	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("arguments target: %w", err)
	}
	if !ty.IsObjectType() {
		return fmt.Errorf("arguments target must be a struct, got %s", ty.FriendlyName())
	}
	current, err := gocty.ToCtyValue(target, ty)
	if err != nil {
		return fmt.Errorf("arguments target: %w", err)
	}

	var unknown []string
	for name := range args {
		if !ty.HasAttribute(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unsupported arguments %v", unknown)
	}

	attrs := make(map[string]cty.Value, len(ty.AttributeTypes()))
	for name, attrTy := range ty.AttributeTypes() {
		arg, ok := args[name]
		if !ok || arg.IsNull() {
			attrs[name] = current.GetAttr(name)
			continue
		}
		conv, err := convert.Convert(arg, attrTy)
		if err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
		attrs[name] = conv
	}

	obj := cty.EmptyObjectVal
	if len(attrs) > 0 {
		obj = cty.ObjectVal(attrs)
	}
	if err := gocty.FromCtyValue(obj, target); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}
