package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thruflo/sightline/internal/config"
)

// ExampleTestFile is where init writes a starter test case.
const ExampleTestFile = "testing/cases/example.yaml"

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .sightline/ in the current project",
	Long: `Creates the .sightline/ directory with a commented config.yaml, an .env
placeholder for the API key, and an example test case.

Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	base, err := resolveBaseDir()
	if err != nil {
		return err
	}
	written, err := initProject(base, initForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(written) == 0 {
		fmt.Fprintln(out, "Already initialized (use --force to overwrite)")
		return nil
	}
	for _, path := range written {
		fmt.Fprintf(out, "Created %s\n", path)
	}
	fmt.Fprintf(out, "\nRun a test with:\n  sightline --url http://localhost:3000 --test %s\n", ExampleTestFile)
	return nil
}

// initProject writes the starter files under base and returns the paths it
// wrote, relative to base.
func initProject(base string, force bool) ([]string, error) {
	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{filepath.Join(config.DirName, "config.yaml"), configTemplate, 0644},
		{filepath.Join(config.DirName, ".env"), envTemplate, 0600},
		{filepath.Join(config.DirName, ".gitignore"), ".env\n", 0644},
		{filepath.FromSlash(ExampleTestFile), exampleTestCase, 0644},
	}

	var written []string
	for _, f := range files {
		full := filepath.Join(base, f.path)
		if !force && fileExists(full) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return written, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(f.content), f.mode); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var configTemplate = fmt.Sprintf(`# Sightline configuration

reports:
  # Run directories are created here, one per test name.
  dir: %s
  # What to do when a test's directory already exists: reuse, suffix or reject.
  collision: reuse
  junit: true

agent:
  model: %s
  base_url: %s
  # The API key is read from this variable (see .env).
  api_key_env: %s
  # Upper bound on browser actions within one step.
  max_actions: %d
  timeout_seconds: %d

browser:
  width: %d
  height: %d
  timeout_seconds: %d

metrics:
  enabled: true
  file: %s

# archive:
#   database_url_env: %s

# publish:
#   provider: s3        # s3, gcs or azure
#   bucket: my-test-reports
#   prefix: sightline

# telemetry:
#   otlp_endpoint: localhost:4317

server:
  port: %d
`,
	config.DefaultReportsDir,
	config.DefaultModel,
	config.DefaultBaseURL,
	config.DefaultAPIKeyEnv,
	config.DefaultMaxActions,
	config.DefaultAgentTimeoutSeconds,
	config.DefaultBrowserWidth,
	config.DefaultBrowserHeight,
	config.DefaultBrowserTimeoutSeconds,
	config.DefaultMetricsFile,
	config.DefaultDatabaseURLEnv,
	config.DefaultServerPort,
)

var envTemplate = fmt.Sprintf(`# Loaded before each run (gitignored). Variables already set win.
%s="..."
`, config.DefaultAPIKeyEnv)

const exampleTestCase = `name: Example
steps:
  - description: Find the main navigation of the page
    expected: A navigation bar or menu is visible
  - description: Click the first link in the navigation
    expected: A different page is shown
`
