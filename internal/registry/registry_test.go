package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

func noopFactory(spec stage.Spec) (stage.Stage, error) {
	return stage.NewFunc(spec, func(context.Context, *state.Store) error { return nil }), nil
}

func noopInitializer(context.Context, InitRequest) (any, error) { return []float64{0}, nil }

type fakeModule struct{ name string }

func (m fakeModule) Register(r *Registry) error {
	return r.Register(m.name, stage.Transition, noopFactory)
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Purchase", stage.Policy, noopFactory))

	assert.True(t, r.Has("Purchase", stage.Policy))
	assert.False(t, r.Has("Purchase", stage.Transition))

	f, err := r.Resolve("Purchase", stage.Policy)
	require.NoError(t, err)
	st, err := f(stage.Spec{Substep: "Purchase", Kind: stage.Policy})
	require.NoError(t, err)
	assert.Equal(t, stage.Policy, st.Spec().Kind)

	_, err = r.Resolve("Purchase", stage.Observation)
	require.ErrorIs(t, err, ErrUnknownStage)
	assert.Contains(t, err.Error(), "Purchase/observation")
}

func TestRegistry_DuplicateRegistrationIsAnError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Restock", stage.Transition, noopFactory))

	err := r.Register("Restock", stage.Transition, noopFactory)
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	// Same name with another kind is a different key.
	require.NoError(t, r.Register("Restock", stage.Observation, noopFactory))

	require.NoError(t, r.RegisterInitializer("uniform", noopInitializer))
	require.ErrorIs(t, r.RegisterInitializer("uniform", noopInitializer), ErrDuplicateRegistration)
}

func TestRegistry_Initializer(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterInitializer("constant", noopInitializer))

	_, err := r.Initializer("constant")
	require.NoError(t, err)
	_, err = r.Initializer("read_from_file")
	require.ErrorIs(t, err, ErrUnknownInitializer)

	// Initializers and stages do not share a namespace.
	assert.False(t, r.Has("constant", stage.Transition))
}

func TestRegistry_Load(t *testing.T) {
	r := New()
	require.NoError(t, r.Load(fakeModule{name: "A"}, fakeModule{name: "B"}))
	assert.Equal(t, []string{"A/transition", "B/transition"}, r.Stages())

	err := r.Load(fakeModule{name: "A"})
	require.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestRegistry_ValidateModel(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Purchase", stage.Observation, noopFactory))
	require.NoError(t, r.Register("Purchase", stage.Transition, noopFactory))
	require.NoError(t, r.RegisterInitializer("uniform", noopInitializer))

	m := &config.Model{
		Agents: []*config.AgentGroup{{Name: "consumers", Number: 1, Properties: []*config.Variable{
			{Name: "budget", Initializer: "uniform"},
		}}},
		Substeps: []*config.Substep{
			{Key: "purchase", Name: "Purchase", Observation: &config.Phase{}},
		},
	}
	require.NoError(t, r.ValidateModel(context.Background(), m))

	m.Substeps[0].Policy = &config.Phase{}
	m.Environment = []*config.Variable{{Name: "stocks", Initializer: "read_from_file"}}
	err := r.ValidateModel(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStage))
	assert.True(t, errors.Is(err, ErrUnknownInitializer))
	assert.Contains(t, err.Error(), "Purchase/policy")
}
