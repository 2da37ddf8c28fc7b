package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/results"
	"github.com/thruflo/sightline/internal/testcase"
)

func TestLoginCaseFormatsAgree(t *testing.T) {
	t.Parallel()

	fromYAML, err := testcase.ParseYAML([]byte(LoginCase))
	require.NoError(t, err)
	fromJSON, err := testcase.ParseJSON([]byte(LoginCaseJSON))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, "Login", fromYAML.Name)
	assert.Len(t, fromYAML.Steps, 2)
	assert.NoError(t, fromYAML.Validate())
}

func TestWriteTestCase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := WriteTestCase(t, dir, filepath.Join("cases", "login.yaml"), LoginCase)

	assert.Equal(t, filepath.Join(dir, "cases", "login.yaml"), path)
	tc, err := testcase.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Login", tc.Name)
}

func TestSampleRun(t *testing.T) {
	t.Parallel()

	run := SampleRun()
	AssertRunStatus(t, run, results.RunFail)
	AssertStepStatuses(t, run,
		results.StatusInfo, results.StatusPass, results.StatusFail, results.StatusUnknown)
	assert.Equal(t, results.RunFail, results.Rollup(run.Steps))

	// Each call returns a fresh value.
	run.Steps[1].Status = results.StatusFail
	assert.Equal(t, results.StatusPass, SampleRun().Steps[1].Status)
}

func TestSetupTestDir(t *testing.T) {
	t.Parallel()

	dir := SetupTestDir(t, "")
	data, err := os.ReadFile(filepath.Join(dir, ".sightline", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "enabled: false")

	custom := SetupTestDir(t, "reports:\n  dir: out\n")
	data, err = os.ReadFile(filepath.Join(custom, ".sightline", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "reports:\n  dir: out\n", string(data))
}

func TestWriteTestFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	WriteTestFile(t, dir, filepath.Join("a", "b", "c.txt"), []byte("hello"))

	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAssertRunFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	WriteTestFile(t, dir, results.ResultsFile, []byte("{}"))
	AssertRunFiles(t, dir, results.ResultsFile)
}
