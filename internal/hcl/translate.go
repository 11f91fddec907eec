package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/substepgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func translateMetadata(b *metadataBlock) config.Metadata {
	return config.Metadata{
		Declared:           true,
		NumEpisodes:        b.NumEpisodes,
		NumStepsPerEpisode: b.NumStepsPerEpisode,
		Calibration:        b.Calibration,
		Seed:               b.Seed,
		AtomicSteps:        b.AtomicSteps,
	}
}

func translateVariable(b *variableBlock, evalCtx *hcl.EvalContext) (*config.Variable, error) {
	v := &config.Variable{
		Name:        b.Name,
		DType:       b.DType,
		Shape:       b.Shape,
		Learnable:   b.Learnable,
		Initializer: b.Initializer,
		Value:       cty.NullVal(cty.DynamicPseudoType),
	}
	if b.Value != nil {
		val, diags := b.Value.Value(evalCtx)
		if diags.HasErrors() {
			return nil, configDiags("value", diags)
		}
		v.Value = val
	}
	args, err := evalArguments(b.Arguments, evalCtx)
	if err != nil {
		return nil, err
	}
	v.Arguments = args
	return v, nil
}

func translateAgents(b *agentsBlock, evalCtx *hcl.EvalContext) (*config.AgentGroup, error) {
	g := &config.AgentGroup{Name: b.Name, Number: b.Number}
	for _, p := range b.Properties {
		v, err := translateVariable(p, evalCtx)
		if err != nil {
			return nil, config.Errorf("agents %q property %q: %v", b.Name, p.Name, err)
		}
		g.Properties = append(g.Properties, v)
	}
	return g, nil
}

func translateSubstep(b *substepBlock, evalCtx *hcl.EvalContext) (*config.Substep, error) {
	s := &config.Substep{
		Key:          b.Key,
		Name:         b.Name,
		Description:  b.Description,
		ActiveAgents: b.ActiveAgents,
	}
	if s.Name == "" {
		s.Name = s.Key
	}

	var err error
	if s.Observation, err = translatePhase(b.Observation, evalCtx); err != nil {
		return nil, config.Errorf("substep %q observation: %v", b.Key, err)
	}
	if s.Policy, err = translatePhase(b.Policy, evalCtx); err != nil {
		return nil, config.Errorf("substep %q policy: %v", b.Key, err)
	}
	if s.Transition, err = translatePhase(b.Transition, evalCtx); err != nil {
		return nil, config.Errorf("substep %q transition: %v", b.Key, err)
	}
	return s, nil
}

func translatePhase(b *phaseBlock, evalCtx *hcl.EvalContext) (*config.Phase, error) {
	if b == nil {
		return nil, nil
	}
	args, err := evalArguments(b.Arguments, evalCtx)
	if err != nil {
		return nil, err
	}
	return &config.Phase{Inputs: b.Inputs, Outputs: b.Outputs, Arguments: args}, nil
}

// evalArguments evaluates an `arguments = { ... }` attribute into a map. A
// missing attribute yields nil.
func evalArguments(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, configDiags("arguments", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, config.Errorf("arguments must be an object, got %s", ty.FriendlyName())
	}
	if !val.IsWhollyKnown() {
		return nil, config.Errorf("arguments must be known at load time")
	}
	return val.AsValueMap(), nil
}

func configDiags(what string, diags hcl.Diagnostics) error {
	return config.Errorf("evaluating %s: %s", what, diags.Error())
}
