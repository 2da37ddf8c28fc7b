package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/sightline/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	baseDir string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "sightline --url URL --test FILE",
	Short: "Agent-driven acceptance tests for web applications",
	Long: `Sightline runs a natural-language test case against a live website.
A computer-use agent drives a real browser through each step and reports
whether the expected outcome was observed. Every run leaves a results.json,
per-step screenshots and an HTML report behind.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTest,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			logging.SetLevel(logging.LevelDebug)
		}
		return nil
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("sightline version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "project directory holding .sightline/ (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveBaseDir returns --base-dir or the working directory.
func resolveBaseDir() (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}
