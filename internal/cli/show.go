package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/sightline/internal/archive"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/report"
	"github.com/thruflo/sightline/internal/results"
)

// RunHistory abstracts the archive for testability.
type RunHistory interface {
	Recent(ctx context.Context, testName string, limit int) ([]archive.RunSummary, error)
}

// showHistorySource overrides the archive used by show --history in tests.
var showHistorySource RunHistory

var showHistory int

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the stored result of a test run",
	Long: `Shows the last persisted run of a test case.

NAME is either the test name (as in the test file) or a path to a report
directory. A test name resolves to the newest of its report directories,
including the timestamped ones left by --collision suffix. With --history,
the most recent archived runs are listed too.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var renderCmd = &cobra.Command{
	Use:   "render NAME",
	Short: "Regenerate the reports of a stored run",
	Long: `Rebuilds report.html (and junit.xml when enabled) from the results.json
of a stored run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	showCmd.Flags().IntVar(&showHistory, "history", 0, "also list this many archived runs")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(renderCmd)
}

// suffixedDir matches the directory suffix added under the suffix collision
// policy.
const suffixedDir = `_\d{8}T\d{6}Z(-\d+)?$`

// locateRun finds the report directory for name: name itself when it is a
// report directory, otherwise the most recently written of {slug} and its
// suffixed variants.
func locateRun(base string, cfg *config.Config, name string) string {
	if info, err := os.Stat(filepath.Join(name, results.ResultsFile)); err == nil && !info.IsDir() {
		return name
	}

	root := cfg.ReportsRoot(base)
	slug := results.Slug(name)
	dir := filepath.Join(root, slug)

	entries, err := os.ReadDir(root)
	if err != nil {
		return dir
	}

	var newest time.Time
	if info, err := os.Stat(filepath.Join(dir, results.ResultsFile)); err == nil {
		newest = info.ModTime()
	}
	suffixed := regexp.MustCompile("^" + regexp.QuoteMeta(slug) + suffixedDir)
	for _, e := range entries {
		if !e.IsDir() || !suffixed.MatchString(e.Name()) {
			continue
		}
		info, err := os.Stat(filepath.Join(root, e.Name(), results.ResultsFile))
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
			dir = filepath.Join(root, e.Name())
		}
	}
	return dir
}

func loadForCommand(name string) (*config.Config, *results.TestRun, error) {
	base, err := resolveBaseDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig(base)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	run, err := results.Load(locateRun(base, cfg, name))
	if err != nil {
		return nil, nil, err
	}
	return cfg, run, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, run, err := loadForCommand(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderSummary(run))
	fmt.Fprintf(out, "Report: %s\n", filepath.Join(run.Dir, report.HTMLFile))

	if showHistory <= 0 {
		return nil
	}

	source := showHistorySource
	if source == nil {
		dsn := cfg.DatabaseURL()
		if dsn == "" {
			return fmt.Errorf("--history needs archive.database_url or $%s", cfg.Archive.DatabaseURLEnv)
		}
		store, err := openArchive(cmd.Context(), dsn)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()
		source = store
	}
	return printHistory(cmd.Context(), out, source, run.Name, showHistory)
}

func printHistory(ctx context.Context, out io.Writer, source RunHistory, name string, limit int) error {
	runs, err := source.Recent(ctx, name, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No archived runs.")
		return nil
	}

	fmt.Fprintf(out, "\n%-20s  %-7s  %-9s  %s\n", "STARTED", "STATUS", "DURATION", "STEPS")
	for _, r := range runs {
		fmt.Fprintf(out, "%-20s  %-7s  %-9s  %d/%d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			(time.Duration(r.DurationMs) * time.Millisecond).Round(10*time.Millisecond),
			r.PassedSteps, r.TotalSteps)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, run, err := loadForCommand(args[0])
	if err != nil {
		return err
	}

	for _, r := range report.Renderers(cfg.Reports.JUnit) {
		if err := r.Render(run); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", filepath.Join(run.Dir, report.HTMLFile))
	return nil
}
