package integration_tests

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/app"
	"github.com/vk/substepgrid/internal/testutil"
)

func TestCoreExecution_RetailHCL_RunsAllEpisodes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := exampleFiles(t, "retail-hcl")

	// --- Act ---
	result := testutil.RunSimulationTest(t, files, nil)

	// --- Assert ---
	testutil.AssertSimulationFinished(t, result)
	testutil.AssertSubstepRan(t, result, "purchase")
	testutil.AssertSubstepRan(t, result, "deliver")
	testutil.AssertSubstepRan(t, result, "restock")

	rn := result.App.Runner()
	require.NotNil(t, rn)
	assert.Equal(t, 2, rn.Episode())
	assert.Equal(t, 10, rn.StepInEpisode())

	store := rn.Store()
	for i, stock := range envNumbers(t, store, "product_stocks") {
		assert.GreaterOrEqual(t, stock, 0.0, "stock %d went negative", i)
	}
	delivered := 0.0
	for _, n := range envNumbers(t, store, "units_delivered") {
		delivered += n
	}
	assert.Positive(t, delivered, "some purchases should have been delivered")

	group, err := store.Group("consumers")
	require.NoError(t, err)
	budgets, err := group.Column("budget")
	require.NoError(t, err)
	require.Equal(t, 50, budgets.Len())
	for i, b := range budgets.Numbers() {
		assert.GreaterOrEqual(t, b, 0.0, "budget of consumer %d went negative", i)
		assert.LessOrEqual(t, b, 150.0, "budget of consumer %d exceeds its initial range", i)
	}
}

func TestCoreExecution_RetailYAML_RunsAllSteps(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := exampleFiles(t, "retail-yaml")

	// --- Act ---
	result := testutil.RunSimulationTest(t, files, nil)

	// --- Assert ---
	testutil.AssertSimulationFinished(t, result)
	testutil.AssertSubstepRan(t, result, "0")
	testutil.AssertSubstepRan(t, result, "1")
	testutil.AssertSubstepRan(t, result, "2")
	assert.Equal(t, 20, result.App.Runner().StepInEpisode())
}

func TestCoreExecution_SameSeed_SameFinalState(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := exampleFiles(t, "retail-hcl")
	seed := int64(1234)
	withSeed := func(cfg *app.Config) { cfg.Seed = &seed }

	// --- Act ---
	first := testutil.RunSimulationTest(t, files, nil, withSeed)
	second := testutil.RunSimulationTest(t, files, nil, withSeed)

	// --- Assert ---
	testutil.AssertSimulationFinished(t, first)
	testutil.AssertSimulationFinished(t, second)

	a, err := json.Marshal(first.App.Runner().Store().Snapshot())
	require.NoError(t, err)
	b, err := json.Marshal(second.App.Runner().Store().Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}
