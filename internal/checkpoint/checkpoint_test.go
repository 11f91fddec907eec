package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/runner"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
	"github.com/zclconf/go-cty/cty"
)

func tempStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stockStore(t *testing.T, stock float64) *state.Store {
	t.Helper()
	st := state.New()
	v, err := state.NewVariable("stock", state.Float, []int{1})
	require.NoError(t, err)
	require.NoError(t, v.Assign(stock))
	require.NoError(t, st.DeclareEnvironment(v))
	return st
}

func stockOf(t *testing.T, snap *state.Snapshot) float64 {
	t.Helper()
	v, err := state.FromSnapshot(snap).Env("stock")
	require.NoError(t, err)
	return v.Floats()[0]
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	cp := tempStore(t)
	now := time.Now()

	require.NoError(t, cp.OnReset(ctx, runner.ResetEvent{RunID: "r1", Episode: 1, Store: stockStore(t, 10), At: now}))
	require.NoError(t, cp.OnStep(ctx, runner.StepEvent{
		RunID: "r1", Episode: 1, Step: 1, Store: stockStore(t, 9), At: now,
		Report: &pipeline.StepReport{Skipped: []state.BoundsError{{Path: "environment/stock", Index: 3, Len: 1}}},
	}))

	recs, err := cp.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Step)
	assert.Equal(t, 1, recs[1].Step)
	assert.Equal(t, 1, recs[1].Skipped)
	assert.WithinDuration(t, now, recs[1].CreatedAt, time.Second)

	snap, err := cp.Load(ctx, "r1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stockOf(t, snap))

	rec, snap, err := cp.Latest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Step)
	assert.Equal(t, 9.0, stockOf(t, snap))
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	cp := tempStore(t)

	_, err := cp.Load(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = cp.Latest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OverwritesSameStep(t *testing.T) {
	ctx := context.Background()
	cp := tempStore(t)

	for _, stock := range []float64{5, 6} {
		require.NoError(t, cp.OnStep(ctx, runner.StepEvent{RunID: "r1", Episode: 1, Step: 1, Store: stockStore(t, stock)}))
	}
	recs, err := cp.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	snap, err := cp.Load(ctx, "r1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 6.0, stockOf(t, snap))
}

func TestStore_Interval(t *testing.T) {
	ctx := context.Background()
	cp := tempStore(t, WithInterval(2))

	for step := 1; step <= 5; step++ {
		require.NoError(t, cp.OnStep(ctx, runner.StepEvent{RunID: "r1", Episode: 1, Step: step, Store: stockStore(t, 1)}))
	}
	recs, err := cp.List(ctx, "r1")
	require.NoError(t, err)
	var steps []int
	for _, r := range recs {
		steps = append(steps, r.Step)
	}
	assert.Equal(t, []int{2, 4}, steps)
}

func TestStore_ObservesRunner(t *testing.T) {
	ctx := context.Background()
	cp := tempStore(t)

	reg := registry.New()
	require.NoError(t, reg.Register("Sell", stage.Transition, func(spec stage.Spec) (stage.Stage, error) {
		return stage.NewFunc(spec, func(_ context.Context, s *state.Store) error {
			v, err := s.Env("stock")
			if err != nil {
				return err
			}
			return v.SetNumber(0, v.Floats()[0]-1)
		}), nil
	}))

	r := runner.New(reg, runner.WithObservers(cp), runner.WithRunID("run-a"))
	require.NoError(t, r.Init(ctx, &config.Model{
		Metadata: config.Metadata{NumEpisodes: 2, NumStepsPerEpisode: 2},
		Environment: []*config.Variable{
			{Name: "stock", DType: "float", Shape: []int{1}, Value: cty.NumberIntVal(10)},
		},
		Substeps: []*config.Substep{{Key: "sell", Name: "Sell"}},
	}))
	require.NoError(t, r.Run(ctx))

	recs, err := cp.List(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, recs, 6)

	runs, err := cp.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, runs)

	snap, err := cp.Load(ctx, "run-a", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 8.0, stockOf(t, snap))
}
