package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/state"
	"github.com/vk/substepgrid/internal/testutil"
)

// exampleFiles reads a configuration directory shipped under examples/
// into the harness file map.
func exampleFiles(t *testing.T, name string) map[string]string {
	t.Helper()
	dir := filepath.Join("..", "..", "..", "examples", name)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		files[e.Name()] = string(buf)
	}
	require.NotEmpty(t, files)
	return files
}

// counterFiles declares a single environment counter and one substep that
// runs the "Tick" transition.
const counterFiles = `
simulation_metadata {
  num_episodes          = 3
  num_steps_per_episode = 4
}

environment "counter" {
  value = 0
  dtype = "int"
}

substep "tick" {
  name = "Tick"
  transition {
    outputs = ["environment/counter"]
  }
}
`

// tickModule increments environment/counter on every step.
func tickModule() *testutil.SimpleModule {
	return &testutil.SimpleModule{
		Name: "Tick",
		Transition: func(_ context.Context, s *state.Store) error {
			v, err := s.Env("counter")
			if err != nil {
				return err
			}
			n, err := v.Scalar()
			if err != nil {
				return err
			}
			return v.SetNumber(0, n+1)
		},
	}
}

func envNumbers(t *testing.T, s *state.Store, name string) []float64 {
	t.Helper()
	v, err := s.Env(name)
	require.NoError(t, err)
	return v.Numbers()
}
