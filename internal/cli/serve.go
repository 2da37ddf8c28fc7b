package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/sightline/internal/auth"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/server"
)

var (
	servePort        int
	serveSetPassword bool
)

// newPrompter reads passwords for serve. Tests replace it.
var newPrompter = func(out io.Writer) auth.Prompter {
	return auth.TerminalPrompter(int(os.Stdin.Fd()), out)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reports over HTTP",
	Long: `Starts a password-protected web server over the reports directory.

The first start prompts for a password and saves its argon2id hash to
.sightline/config.yaml. Use --password to change it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default: server.port from config)")
	serveCmd.Flags().BoolVar(&serveSetPassword, "password", false, "prompt to set or change the server password")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	base, err := resolveBaseDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(base)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := ensureServerPassword(base, cfg, serveSetPassword, newPrompter(out), out); err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	srv, err := server.NewServerFromConfig(cfg.Server, cfg.ReportsRoot(base))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Serving %s on http://localhost:%d\n", cfg.ReportsRoot(base), cfg.Server.Port)
	return srv.Start(ctx)
}

// ensureServerPassword prompts for a password when none is configured or
// when reset is set, and saves its hash to the config file.
func ensureServerPassword(base string, cfg *config.Config, reset bool, prompter auth.Prompter, out io.Writer) error {
	if cfg.Server.PasswordHash != "" && !reset {
		return nil
	}

	password, err := prompter.NewPassword()
	if err != nil {
		return fmt.Errorf("password setup failed: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	cfg.Server.PasswordHash = hash
	if err := config.SaveConfig(base, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintln(out, "Password saved to config.")
	return nil
}
