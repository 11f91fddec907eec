package retail

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
	"github.com/zclconf/go-cty/cty"
)

func declareEnv(t *testing.T, s *state.Store, name string, vals ...float64) {
	t.Helper()
	v, err := state.NewVariable(name, state.Float, []int{len(vals)})
	require.NoError(t, err)
	require.NoError(t, v.Assign(vals))
	require.NoError(t, s.DeclareEnvironment(v))
}

func declareConsumers(t *testing.T, s *state.Store, budgets ...float64) {
	t.Helper()
	g, err := state.NewAgentGroup(DefaultGroup, len(budgets))
	require.NoError(t, err)
	require.NoError(t, g.AddProperty(attrBudget, state.Float, []int{len(budgets), 1}, false))
	require.NoError(t, g.SetColumn(attrBudget, budgets))
	require.NoError(t, s.DeclareGroup(g))
}

func envValues(t *testing.T, s *state.Store, name string) []float64 {
	t.Helper()
	v, err := s.Env(name)
	require.NoError(t, err)
	return v.Numbers()
}

func budgetsOf(t *testing.T, s *state.Store) []float64 {
	t.Helper()
	col, err := s.Get("agents/consumers/budget")
	require.NoError(t, err)
	return col.(*state.Variable).Floats()
}

func build(t *testing.T, s *state.Store, substeps ...*config.Substep) *pipeline.Pipeline {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Load(&Module{}))
	p, err := pipeline.Build(reg, substeps)
	require.NoError(t, err)
	require.NoError(t, p.ValidatePaths(s))
	return p
}

func purchaseSubstep(args map[string]cty.Value) *config.Substep {
	return &config.Substep{
		Key: "purchase", Name: PurchaseSubstep, ActiveAgents: []string{DefaultGroup},
		Observation: &config.Phase{}, Policy: &config.Phase{Arguments: args}, Transition: &config.Phase{},
	}
}

func restockSubstep(obsArgs, policyArgs map[string]cty.Value) *config.Substep {
	return &config.Substep{
		Key: "restock", Name: RestockSubstep,
		Observation: &config.Phase{Arguments: obsArgs}, Policy: &config.Phase{Arguments: policyArgs}, Transition: &config.Phase{},
	}
}

func deliverSubstep() *config.Substep {
	return &config.Substep{
		Key: "deliver", Name: DeliverSubstep,
		Observation: &config.Phase{}, Policy: &config.Phase{}, Transition: &config.Phase{},
	}
}

func scenarioStore(t *testing.T) *state.Store {
	s := state.New()
	declareEnv(t, s, envStocks, 4)
	declareEnv(t, s, envPrices, 20)
	declareEnv(t, s, envPromotions, 0.8)
	declareEnv(t, s, envThreshold, 5)
	declareEnv(t, s, envQuantity, 10)
	declareConsumers(t, s, 120)
	return s
}

func TestScenario_PurchaseThenBatchRestock(t *testing.T) {
	ctx := context.Background()

	t.Run("purchase", func(t *testing.T) {
		s := scenarioStore(t)
		p := build(t, s, purchaseSubstep(nil))
		_, err := p.RunOnce(ctx, s)
		require.NoError(t, err)
		assert.InDelta(t, 104.0, budgetsOf(t, s)[0], 1e-9)
		assert.Equal(t, []float64{3}, envValues(t, s, envStocks))
	})

	t.Run("purchase and restock", func(t *testing.T) {
		s := scenarioStore(t)
		p := build(t, s, purchaseSubstep(nil), restockSubstep(nil, map[string]cty.Value{"strategy": cty.StringVal(StrategyBatch)}))
		report, err := p.RunOnce(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, []string{"purchase", "restock"}, report.Substeps)
		assert.Empty(t, report.Skipped)
		assert.InDelta(t, 104.0, budgetsOf(t, s)[0], 1e-9)
		assert.Equal(t, []float64{13}, envValues(t, s, envStocks))
	})
}

func TestPurchase_RegisteredObservationRunsWithoutBlock(t *testing.T) {
	s := scenarioStore(t)
	sub := purchaseSubstep(nil)
	sub.Observation = nil
	p := build(t, s, sub)

	require.NotNil(t, p.Substeps()[0].Observation)
	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)
	assert.InDelta(t, 104.0, budgetsOf(t, s)[0], 1e-9)
	assert.Equal(t, []float64{3}, envValues(t, s, envStocks))
}

func TestRestock_Deficit(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 5, 4.5, 0, 6)
	declareEnv(t, s, envThreshold, 5)
	declareEnv(t, s, envQuantity, 3)
	p := build(t, s, restockSubstep(nil, nil))

	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)
	// Equal to the threshold is not restocked; below it gains min(deficit, capacity).
	assert.Equal(t, []float64{5, 5, 3, 6}, envValues(t, s, envStocks))
}

func TestRestock_IdempotentAtOrAboveThreshold(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 5, 7, 12)
	declareEnv(t, s, envQuantity, 10)
	p := build(t, s, restockSubstep(map[string]cty.Value{"threshold": cty.NumberIntVal(5)}, nil))

	for range 3 {
		_, err := p.RunOnce(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 7, 12}, envValues(t, s, envStocks))
	}
}

func TestRestock_UnknownStrategy(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Load(&Module{}))
	_, err := pipeline.Build(reg, []*config.Substep{restockSubstep(nil, map[string]cty.Value{"strategy": cty.StringVal("hoard")})})
	require.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "hoard")
}

func TestPurchase_ConservesBudget(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 1, 5)
	declareEnv(t, s, envPrices, 30, 8)
	declareEnv(t, s, envPromotions, 0.5, 1)
	declareConsumers(t, s, 100, 10, 50)
	before := budgetsOf(t, s)

	p := build(t, s, purchaseSubstep(map[string]cty.Value{"workers": cty.NumberIntVal(2)}))
	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)

	final, err := state.ScratchAs[[]Action](s, scratchFinal)
	require.NoError(t, err)
	want := []Action{
		{Consumer: 0, Product: 0, Paid: 15, Committed: true},
		{Consumer: 1, Product: 1, Paid: 8, Committed: true},
		{Consumer: 2, Product: 0, Paid: 0, Committed: false},
	}
	if diff := cmp.Diff(want, final); diff != "" {
		t.Fatalf("final purchases mismatch (-want +got):\n%s", diff)
	}

	after := budgetsOf(t, s)
	for i, a := range final {
		paid := 0.0
		if a.Committed {
			paid = a.Paid
		}
		assert.InDelta(t, paid, before[i]-after[i], 1e-9, "consumer %d", i)
	}
	assert.Equal(t, []float64{0, 4}, envValues(t, s, envStocks))
}

func TestPurchase_SkipsUnaffordableAndEmptyStock(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 0, -2, 3)
	declareEnv(t, s, envPrices, 1, 1, 50)
	declareConsumers(t, s, 40)

	p := build(t, s, purchaseSubstep(nil))
	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)

	obs, err := state.ScratchAs[[]Action](s, scratchFinal)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Bought())
	assert.Equal(t, []float64{40}, budgetsOf(t, s))
	assert.Equal(t, []float64{0, -2, 3}, envValues(t, s, envStocks))
}

func TestPurchase_PriceSensitivity(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 5, 5)
	declareEnv(t, s, envPrices, 20, 10)
	g, err := state.NewAgentGroup(DefaultGroup, 1)
	require.NoError(t, err)
	require.NoError(t, g.AddProperty(attrBudget, state.Float, nil, false))
	require.NoError(t, g.AddProperty(attrSensitivity, state.Float, nil, false))
	require.NoError(t, g.SetColumn(attrBudget, []float64{25}))
	require.NoError(t, g.SetColumn(attrSensitivity, []float64{1.5}))
	require.NoError(t, s.DeclareGroup(g))

	p := build(t, s, purchaseSubstep(nil))
	_, err = p.RunOnce(context.Background(), s)
	require.NoError(t, err)

	// 20 × 1.5 exceeds the budget, so the consumer settles for product 1.
	assert.Equal(t, []float64{15}, budgetsOf(t, s))
	assert.Equal(t, []float64{5, 4}, envValues(t, s, envStocks))
}

func TestDeliver_CountsCommittedPurchases(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 1, 5)
	declareEnv(t, s, envPrices, 30, 8)
	declareEnv(t, s, envPromotions, 0.5, 1)
	declareEnv(t, s, envDelivered, 0, 0)
	declareConsumers(t, s, 100, 10, 50)

	p := build(t, s, purchaseSubstep(nil), deliverSubstep())
	assert.Equal(t, []string{scratchFinal}, p.Substeps()[1].Carry())

	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, envValues(t, s, envDelivered))
	assert.Equal(t, []string{scratchDeliveryInfo, scratchDeliveryPlan, scratchFinal}, s.ScratchKeys())
}

func TestDeliver_WithoutPurchasesDeliversNothing(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envDelivered, 0, 0)
	p := build(t, s, deliverSubstep())

	_, err := p.RunOnce(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, envValues(t, s, envDelivered))
}

func TestTransitions_SkipOutOfRangeProducts(t *testing.T) {
	ctx := context.Background()
	s := state.New()
	declareEnv(t, s, envStocks, 1, 1)
	declareEnv(t, s, envDelivered, 0, 0)

	restock, err := NewRestockTransition(stage.Spec{Substep: RestockSubstep, Kind: stage.Transition})
	require.NoError(t, err)
	s.PutScratch(scratchRestock, []Replenishment{{Product: 7, Amount: 3}, {Product: 1, Amount: 2}})
	require.NoError(t, restock.Run(ctx, s))
	assert.Equal(t, []float64{1, 3}, envValues(t, s, envStocks))

	deliver, err := NewDeliverTransition(stage.Spec{Substep: DeliverSubstep, Kind: stage.Transition})
	require.NoError(t, err)
	s.PutScratch(scratchDeliveryPlan, []Delivery{{Consumer: 0, Product: -1, DeliverNow: true}, {Consumer: 1, Product: 0, DeliverNow: true}})
	require.NoError(t, deliver.Run(ctx, s))
	assert.Equal(t, []float64{1, 0}, envValues(t, s, envDelivered))

	skipped := s.DrainBounds()
	require.Len(t, skipped, 2)
	assert.Equal(t, 7, skipped[0].Index)
	assert.Equal(t, envPath(envStocks), skipped[0].Path)
	assert.Equal(t, -1, skipped[1].Index)
}

func TestPurchaseTransition_RefundsStaleProduct(t *testing.T) {
	s := state.New()
	declareEnv(t, s, envStocks, 2)
	declareConsumers(t, s, 50)
	s.PutScratch(scratchActions, []Action{{Consumer: 0, Product: 4, Paid: 10}})

	tr, err := NewPurchaseTransition(stage.Spec{Substep: PurchaseSubstep, Kind: stage.Transition})
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background(), s))

	assert.Equal(t, []float64{60}, budgetsOf(t, s))
	assert.Len(t, s.DrainBounds(), 1)
}

func TestModule_RegistersEveryPhase(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Load(&Module{}))
	for _, name := range []string{PurchaseSubstep, DeliverSubstep, RestockSubstep} {
		for _, kind := range stage.Kinds {
			assert.True(t, reg.Has(name, kind), "%s/%s", name, kind)
		}
	}
	assert.ErrorIs(t, (&Module{}).Register(reg), registry.ErrDuplicateRegistration)
}
