// Package testutil provides harnesses for end-to-end tests: configuration
// files are written into a temporary directory and run through the full
// application.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/app"
	"github.com/vk/substepgrid/internal/registry"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Dir is the temporary directory holding the configuration files.
	Dir string
}

// Options tweaks the application config used by the harness.
type Options func(cfg *app.Config)

// RunSimulationTest provides a standardized harness for running integration
// tests using a default background context. files maps relative paths to
// their content.
func RunSimulationTest(t *testing.T, files map[string]string, modules []registry.Module, opts ...Options) *HarnessResult {
	t.Helper()
	return RunSimulationTestWithContext(context.Background(), t, files, modules, opts...)
}

// RunSimulationTestWithContext is RunSimulationTest with a caller context.
// Load errors and run errors are both reported through HarnessResult.Err.
func RunSimulationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules []registry.Module, opts ...Options) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := &app.Config{
		ConfigPaths: []string{tmpDir},
		LogLevel:    "debug",
		LogFormat:   "text",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logBuffer := &app.SafeBuffer{}
	res := &HarnessResult{Dir: tmpDir}

	testApp, err := app.NewApp(logBuffer, cfg, app.NewFormatLoader(), modules...)
	if err == nil {
		res.App = testApp
		err = testApp.Run(ctx)
	}
	res.Err = err
	res.LogOutput = logBuffer.String()

	if os.Getenv("SUBSTEPGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), res.LogOutput)
	}
	return res
}
