package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func validModel() *Model {
	return &Model{
		Metadata: Metadata{NumEpisodes: 1, NumStepsPerEpisode: 2},
		Environment: []*Variable{
			{Name: "product_stocks", DType: "float", Shape: []int{3}, Value: cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2), cty.NumberIntVal(3)})},
		},
		Agents: []*AgentGroup{
			{Name: "consumers", Number: 2, Properties: []*Variable{
				{Name: "budget", DType: "float", Shape: []int{2, 1}, Initializer: "uniform"},
			}},
		},
		Substeps: []*Substep{
			{Key: "purchase", Name: "Purchase", ActiveAgents: []string{"consumers"}, Transition: &Phase{}},
		},
	}
}

func TestModel_ValidateAcceptsValidModel(t *testing.T) {
	require.NoError(t, validModel().Validate())
}

func TestModel_ValidateReportsProblems(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(m *Model)
		expectErr string
	}{
		{
			name:      "zero episodes",
			mutate:    func(m *Model) { m.Metadata.NumEpisodes = 0 },
			expectErr: "num_episodes must be positive",
		},
		{
			name:      "bad dtype",
			mutate:    func(m *Model) { m.Environment[0].DType = "tensor" },
			expectErr: `unknown dtype "tensor"`,
		},
		{
			name:      "value and initializer",
			mutate:    func(m *Model) { m.Environment[0].Initializer = "constant" },
			expectErr: "mutually exclusive",
		},
		{
			name:      "neither value nor initializer",
			mutate:    func(m *Model) { m.Agents[0].Properties[0].Initializer = "" },
			expectErr: "either value or initializer is required",
		},
		{
			name:      "duplicate environment",
			mutate:    func(m *Model) { m.Environment = append(m.Environment, m.Environment[0]) },
			expectErr: "declared more than once",
		},
		{
			name:      "non-positive group size",
			mutate:    func(m *Model) { m.Agents[0].Number = 0 },
			expectErr: "number must be positive",
		},
		{
			name:      "unknown active agents",
			mutate:    func(m *Model) { m.Substeps[0].ActiveAgents = []string{"suppliers"} },
			expectErr: `active agent group "suppliers" is not declared`,
		},
		{
			name:      "no substeps",
			mutate:    func(m *Model) { m.Substeps = nil },
			expectErr: "at least one substep",
		},
		{
			name:      "malformed phase path",
			mutate:    func(m *Model) { m.Substeps[0].Transition.Outputs = []string{"stocks"} },
			expectErr: "substep purchase transition",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := validModel()
			tc.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Contains(t, err.Error(), tc.expectErr)
		})
	}
}

func TestModel_LookupAndMerge(t *testing.T) {
	m := validModel()
	_, ok := m.Lookup("product_stocks")
	assert.True(t, ok)
	_, ok = m.Group("suppliers")
	assert.False(t, ok)

	empty := &Model{}
	empty.Merge(m)
	assert.Equal(t, m.Metadata, empty.Metadata)
	assert.Len(t, empty.Substeps, 1)
}

func TestModel_MergeKeepsDeclaredZeroMetadata(t *testing.T) {
	m := &Model{Metadata: Metadata{Declared: true}}
	m.Merge(validModel())
	assert.Equal(t, Metadata{Declared: true}, m.Metadata)
	assert.Len(t, m.Substeps, 1)
}
