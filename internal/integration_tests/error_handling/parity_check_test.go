package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/testutil"
)

const metadataHCL = `
simulation_metadata {
  num_episodes          = 1
  num_steps_per_episode = 2
}
`

// TestErrorHandling_ParityCheck verifies that a configuration naming stages
// the registry does not know is rejected before the first step runs.
func TestErrorHandling_ParityCheck(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		substeps  string
		expectErr error
		contains  string
	}{
		{
			name: "Unknown observation",
			substeps: `
				substep "noop" {
					name = "NoOp"
					observation {}
					transition {}
				}
			`,
			expectErr: registry.ErrUnknownStage,
			contains:  "NoOp/observation",
		},
		{
			name: "Unknown policy",
			substeps: `
				substep "noop" {
					name = "NoOp"
					policy {}
					transition {}
				}
			`,
			expectErr: registry.ErrUnknownStage,
			contains:  "NoOp/policy",
		},
		{
			name: "Missing transition",
			substeps: `
				substep "ghost" {
					name = "Ghost"
				}
			`,
			expectErr: pipeline.ErrMissingTransition,
			contains:  "Ghost",
		},
		{
			name: "Unknown initializer",
			substeps: `
				agents "consumers" {
					number = 2
					property "budget" {
						initializer = "does_not_exist"
					}
				}
				substep "noop" {
					name = "NoOp"
					transition {}
				}
			`,
			expectErr: registry.ErrUnknownInitializer,
			contains:  "does_not_exist",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			files := map[string]string{
				"meta.hcl":     metadataHCL,
				"substeps.hcl": tc.substeps,
			}

			// --- Act ---
			result := testutil.RunSimulationTest(t, files, []registry.Module{&testutil.NoOpModule{}})

			// --- Assert ---
			require.ErrorIs(t, result.Err, tc.expectErr)
			require.Contains(t, result.Err.Error(), tc.contains)
			require.Contains(t, result.Err.Error(), "initialization failed")
			require.NotContains(t, result.LogOutput, `msg="Running substep."`)
		})
	}
}
