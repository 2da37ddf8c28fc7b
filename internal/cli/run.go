package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/sightline/internal/agent"
	"github.com/thruflo/sightline/internal/archive"
	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/conversation"
	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/metrics"
	"github.com/thruflo/sightline/internal/publish"
	"github.com/thruflo/sightline/internal/report"
	"github.com/thruflo/sightline/internal/results"
	"github.com/thruflo/sightline/internal/runner"
	"github.com/thruflo/sightline/internal/telemetry"
	"github.com/thruflo/sightline/internal/testcase"
)

// ErrTestFailed is returned under --strict when the run did not pass.
var ErrTestFailed = errors.New("test did not pass")

var (
	runURL        string
	runTestFile   string
	runHeadless   bool
	runShowImages bool
	runStrict     bool
	runAckSafety  bool
	runCollision  string
)

// Collaborators wired by runTest. Tests replace them.
var (
	newLauncher = chromeLauncher
	newAgent    = computerUseAgent
)

func init() {
	rootCmd.Flags().StringVarP(&runURL, "url", "u", "", "URL of the website to test (required)")
	rootCmd.Flags().StringVarP(&runTestFile, "test", "t", "", "path to the JSON or YAML test case (required)")
	rootCmd.Flags().BoolVar(&runHeadless, "headless", false, "run Chrome without a window")
	rootCmd.Flags().BoolVar(&runShowImages, "show-images", false, "print screenshots inline in the terminal")
	rootCmd.Flags().BoolVar(&runStrict, "strict", false, "exit non-zero when the test does not pass")
	rootCmd.Flags().BoolVar(&runAckSafety, "ack-safety-checks", false, "acknowledge the model's pending safety checks instead of aborting")
	rootCmd.Flags().StringVar(&runCollision, "collision", "", "what to do when the report directory exists: reuse, suffix or reject")

	rootCmd.MarkFlagRequired("url")
	rootCmd.MarkFlagRequired("test")
}

// runRequest is everything runTest needs from flags.
type runRequest struct {
	URL        string
	TestFile   string
	BaseDir    string
	Headless   bool
	ShowImages bool
	Debug      bool
	Strict     bool
	AckSafety  bool
	Collision  string
}

func runTest(cmd *cobra.Command, args []string) error {
	base, err := resolveBaseDir()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRun(ctx, cmd.OutOrStdout(), runRequest{
		URL:        runURL,
		TestFile:   runTestFile,
		BaseDir:    base,
		Headless:   runHeadless,
		ShowImages: runShowImages,
		Debug:      debug,
		Strict:     runStrict,
		AckSafety:  runAckSafety,
		Collision:  runCollision,
	})
}

func executeRun(ctx context.Context, out io.Writer, req runRequest) error {
	if err := config.LoadEnv(req.BaseDir); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(req.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if req.Collision != "" {
		cfg.Reports.Collision = req.Collision
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
	}

	tc, err := testcase.Load(req.TestFile)
	if err != nil {
		return err
	}
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("invalid test case: %w", err)
	}

	agentFactory, err := newAgent(cfg, req)
	if err != nil {
		return err
	}

	tracer, shutdown, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logging.Warn("failed to flush traces", "error", err)
		}
	}()

	sinks, closeSinks := buildSinks(ctx, cfg)
	defer closeSinks()

	r := runner.New(newLauncher(cfg, req), agentFactory, runner.Options{
		Reports: results.Options{
			Root:      cfg.ReportsRoot(req.BaseDir),
			Collision: cfg.Reports.Collision,
			Renderers: report.Renderers(cfg.Reports.JUnit),
		},
		Turn: agent.TurnOptions{
			Debug:      req.Debug,
			ShowImages: req.ShowImages,
			PrintSteps: true,
		},
		Sinks:  sinks,
		Tracer: tracer,
	})

	fmt.Fprintf(out, "Running test %q against %s\n", tc.Name, req.URL)
	run, runErr := r.Run(ctx, tc, req.URL)
	if run != nil {
		fmt.Fprintln(out, renderSummary(run))
		fmt.Fprintf(out, "Test report available at: %s\n", filepath.Join(run.Dir, report.HTMLFile))
	}
	if runErr != nil {
		return runErr
	}
	if req.Strict && run.Status != results.RunPass {
		return fmt.Errorf("%w: %s", ErrTestFailed, run.Status)
	}
	return nil
}

func chromeLauncher(cfg *config.Config, req runRequest) browser.Launcher {
	return browser.ChromeLauncher{Config: browser.Config{
		Headless:  req.Headless,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
		UserAgent: cfg.Browser.UserAgent,
		ExecPath:  cfg.Browser.ExecPath,
		Timeout:   time.Duration(cfg.Browser.TimeoutSeconds) * time.Second,
	}}
}

func computerUseAgent(cfg *config.Config, req runRequest) (runner.AgentFactory, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key: set %s", cfg.Agent.APIKeyEnv)
	}

	agentCfg := agent.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.Agent.BaseURL,
		Model:      cfg.Agent.Model,
		Timeout:    time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		MaxActions: cfg.Agent.MaxActions,
	}
	if req.AckSafety {
		agentCfg.AcknowledgeSafetyCheck = func(check conversation.SafetyCheck) bool {
			logging.Warn("acknowledging safety check", "code", check.Code, "message", check.Message)
			return true
		}
	}

	return func(actuator browser.Actuator) runner.Agent {
		return agent.New(agentCfg, actuator)
	}, nil
}

// buildSinks wires the optional post-run sinks. A sink that cannot be set up
// is skipped with a warning.
func buildSinks(ctx context.Context, cfg *config.Config) ([]runner.Sink, func()) {
	var sinks []runner.Sink
	var closers []func() error

	if cfg.Metrics.Enabled {
		sinks = append(sinks, metrics.NewCollector(cfg.Metrics.File))
	}

	if dsn := cfg.DatabaseURL(); dsn != "" {
		store, err := openArchive(ctx, dsn)
		if err != nil {
			logging.Warn("run archive disabled", "error", err)
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store.Close)
		}
	}

	if cfg.Publish.Enabled() {
		provider, err := publish.NewProvider(ctx, publishConfig(cfg.Publish))
		if err != nil {
			logging.Warn("report publishing disabled", "error", err)
		} else {
			pub := publish.NewPublisher(provider)
			sinks = append(sinks, pub)
			closers = append(closers, pub.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logging.Warn("failed to close sink", "error", err)
			}
		}
	}
}

func openArchive(ctx context.Context, dsn string) (*archive.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := archive.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func publishConfig(p config.PublishConfig) publish.Config {
	return publish.Config{
		Provider:           p.Provider,
		Bucket:             p.Bucket,
		Prefix:             p.Prefix,
		Region:             p.Region,
		Endpoint:           p.Endpoint,
		AccessKey:          config.Env(p.AccessKeyEnv),
		SecretKey:          config.Env(p.SecretKeyEnv),
		S3PathStyle:        p.S3PathStyle,
		GCPCredentialsFile: p.GCPCredentialsFile,
		AzureAccount:       p.AzureAccount,
		AzureEndpoint:      p.AzureEndpoint,
		AzureKey:           config.Env(p.AzureKeyEnv),
		AzureSASToken:      config.Env(p.AzureSASTokenEnv),
	}
}
