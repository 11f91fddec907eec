package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/checkpoint"
	"github.com/vk/substepgrid/internal/runner"
	"github.com/vk/substepgrid/internal/state"
	"github.com/vk/substepgrid/internal/telemetry"
)

func TestApp_Run_RetailExampleWithCheckpoints(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dbPath := filepath.Join(t.TempDir(), "run.db")
	cfg := &Config{
		ConfigPaths:        []string{filepath.Join("..", "..", "examples", "retail-hcl")},
		CheckpointPath:     dbPath,
		CheckpointInterval: 5,
		Workers:            2,
	}
	testApp, logs := SetupAppTest(t, cfg)

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Simulation finished.")
	assert.Contains(t, logs.String(), "Checkpoints enabled.")

	rn := testApp.Runner()
	require.NotNil(t, rn)

	cp, err := checkpoint.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })

	records, err := cp.List(context.Background(), rn.RunID())
	require.NoError(t, err)
	// Two episodes, each with its start and steps 5 and 10.
	assert.Len(t, records, 6)
}

func TestApp_Run_InitFailureIsReported(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The retail example needs the retail module; only initializers are loaded.
	cfg := &Config{ConfigPaths: []string{filepath.Join("..", "..", "examples", "retail-hcl")}}
	testApp, _ := SetupAppTest(t, cfg, coreModules[0])

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialization failed")
}

func TestApp_HealthHandler(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := &Config{ConfigPaths: []string{filepath.Join("..", "..", "examples", "retail-hcl")}}
	testApp, _ := SetupAppTest(t, cfg)
	require.NoError(t, testApp.Run(context.Background()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	// --- Act ---
	testApp.healthHandler(rec, req)

	// --- Assert ---
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ready", body["runner"])
}

func TestTelemetrySettings(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := &Config{
		TelemetryURL:       "https://telemetry.local",
		TelemetryNamespace: "/sim",
		TelemetryAgents:    true,
		TelemetryInsecure:  true,
	}

	// --- Act ---
	clientCfg, opts := telemetrySettings(cfg)
	withAgents := telemetry.NewPublisher(nil, opts...).StepPayload(runner.StepEvent{Store: state.New()})
	_, plainOpts := telemetrySettings(&Config{TelemetryURL: cfg.TelemetryURL})
	plain := telemetry.NewPublisher(nil, plainOpts...).StepPayload(runner.StepEvent{Store: state.New()})

	// --- Assert ---
	assert.Equal(t, "https://telemetry.local", clientCfg.URL)
	assert.Equal(t, "/sim", clientCfg.Namespace)
	assert.True(t, clientCfg.InsecureSkipVerify)
	assert.Contains(t, withAgents, "agents")
	assert.NotContains(t, plain, "agents")
}
