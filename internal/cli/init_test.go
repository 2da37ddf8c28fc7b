package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/testcase"
)

func TestInitProject(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	written, err := initProject(base, false)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	t.Run("config loads with defaults", func(t *testing.T) {
		cfg, err := config.LoadConfig(base)
		require.NoError(t, err)
		want := config.DefaultConfig()
		assert.Equal(t, want, *cfg)
	})

	t.Run("env file is private and ignored", func(t *testing.T) {
		info, err := os.Stat(filepath.Join(base, config.DirName, ".env"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		data, err := os.ReadFile(filepath.Join(base, config.DirName, ".gitignore"))
		require.NoError(t, err)
		assert.Equal(t, ".env\n", string(data))
	})

	t.Run("example test case is valid", func(t *testing.T) {
		tc, err := testcase.Load(filepath.Join(base, ExampleTestFile))
		require.NoError(t, err)
		assert.Equal(t, "Example", tc.Name)
		assert.Len(t, tc.Steps, 2)
		assert.NoError(t, tc.Validate())
	})
}

func TestInitProject_KeepsExistingFiles(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	configPath := filepath.Join(base, config.DirName, "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("reports:\n  dir: out\n"), 0644))

	written, err := initProject(base, false)
	require.NoError(t, err)
	assert.NotContains(t, written, filepath.Join(config.DirName, "config.yaml"))
	assert.Len(t, written, 3)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "reports:\n  dir: out\n", string(data))

	again, err := initProject(base, false)
	require.NoError(t, err)
	assert.Empty(t, again)

	forced, err := initProject(base, true)
	require.NoError(t, err)
	assert.Len(t, forced, 4)
}

func TestRunInit(t *testing.T) {
	base := t.TempDir()
	useBaseDir(t, base)

	var out bytes.Buffer
	initCmd.SetOut(&out)
	t.Cleanup(func() { initCmd.SetOut(nil) })

	require.NoError(t, runInit(initCmd, nil))
	assert.Contains(t, out.String(), "Created "+filepath.Join(config.DirName, "config.yaml"))
	assert.Contains(t, out.String(), "--test "+ExampleTestFile)

	out.Reset()
	require.NoError(t, runInit(initCmd, nil))
	assert.Contains(t, out.String(), "Already initialized")
}
