package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// APIKeyEnv is the variable live agent tests read their key from.
const APIKeyEnv = "OPENAI_API_KEY"

// chromeBinaries are the executable names probed by RequireChrome.
var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// SetupTestDir creates a temporary project directory with a
// .sightline/config.yaml holding configYAML. An empty configYAML writes a
// minimal config that keeps every optional sink off.
// The directory is automatically cleaned up when the test completes.
func SetupTestDir(t *testing.T, configYAML string) string {
	t.Helper()

	tmpDir := t.TempDir()
	if configYAML == "" {
		configYAML = `reports:
  dir: testing/reports
  junit: true
metrics:
  enabled: false
`
	}
	WriteTestFile(t, tmpDir, filepath.Join(".sightline", "config.yaml"), []byte(configYAML))
	return tmpDir
}

// RequireChrome skips the test unless a local Chrome or Chromium is on PATH.
// It also skips in short mode.
func RequireChrome(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	for _, name := range chromeBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary found, skipping browser test")
}

// RequireAPIKey returns the live agent key, skipping the test when it is
// not set.
func RequireAPIKey(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping live agent test in short mode")
	}
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		t.Skipf("%s not available, skipping live agent test", APIKeyEnv)
	}
	return key
}

// WriteTestFile writes content to a file in the test directory.
// Creates parent directories as needed.
func WriteTestFile(t *testing.T, basePath, relativePath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(basePath, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}
