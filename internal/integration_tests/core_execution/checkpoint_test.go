package integration_tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/app"
	"github.com/vk/substepgrid/internal/checkpoint"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/state"
	"github.com/vk/substepgrid/internal/testutil"
)

func TestCoreExecution_Checkpoints_RecordEveryStep(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dbPath := filepath.Join(t.TempDir(), "checkpoints.db")
	files := map[string]string{"main.hcl": counterFiles}
	withCheckpoints := func(cfg *app.Config) {
		cfg.CheckpointPath = dbPath
		cfg.CheckpointInterval = 2
	}

	// --- Act ---
	result := testutil.RunSimulationTest(t, files, []registry.Module{tickModule()}, withCheckpoints)

	// --- Assert ---
	testutil.AssertSimulationFinished(t, result)

	ctx := context.Background()
	cp, err := checkpoint.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })

	runs, err := cp.Runs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{result.App.Runner().RunID()}, runs)

	records, err := cp.List(ctx, runs[0])
	require.NoError(t, err)
	// Each of the 3 episodes stores its start plus steps 2 and 4.
	require.Len(t, records, 9)

	latest, snap, err := cp.Latest(ctx, runs[0])
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Episode)
	assert.Equal(t, 4, latest.Step)
	assert.Equal(t, []float64{4}, envNumbers(t, state.FromSnapshot(snap), "counter"))

	start, err := cp.Load(ctx, runs[0], 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, envNumbers(t, state.FromSnapshot(start), "counter"))
}
