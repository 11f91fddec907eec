package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertSimulationFinished checks the log output within a HarnessResult to
// confirm that every episode ran to completion.
func AssertSimulationFinished(t *testing.T, result *HarnessResult) {
	t.Helper()
	require.NoError(t, result.Err)
	require.True(t,
		strings.Contains(result.LogOutput, "Simulation finished."),
		"expected the simulation to finish, log output:\n%s", result.LogOutput,
	)
}

// AssertSubstepRan confirms that the substep with the given configuration
// key was executed at least once.
func AssertSubstepRan(t *testing.T, result *HarnessResult, key string) {
	t.Helper()
	require.True(t,
		strings.Contains(result.LogOutput, `msg="Running substep." substep=`+key),
		"expected log output for substep %q was not found", key,
	)
}
