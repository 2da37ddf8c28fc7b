package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/results"
)

// AssertRunFiles asserts that every named file exists in a run directory.
func AssertRunFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.DirExists(t, dir)
	for _, name := range names {
		assert.FileExists(t, filepath.Join(dir, name), "run directory should contain %s", name)
	}
}

// AssertRunStatus asserts that a run has the expected status.
func AssertRunStatus(t *testing.T, run *results.TestRun, expected results.RunStatus) {
	t.Helper()
	require.NotNil(t, run, "run is nil")
	assert.Equal(t, expected, run.Status, "run status mismatch")
}

// AssertStepStatuses asserts the status of every step, in order, and that
// steps are numbered from 1 without gaps.
func AssertStepStatuses(t *testing.T, run *results.TestRun, expected ...results.Status) {
	t.Helper()
	require.NotNil(t, run, "run is nil")
	require.Len(t, run.Steps, len(expected), "step count mismatch")

	for i, want := range expected {
		assert.Equal(t, i+1, run.Steps[i].Step, "step[%d].Step mismatch", i)
		assert.Equal(t, want, run.Steps[i].Status, "step[%d].Status mismatch", i)
	}
}
