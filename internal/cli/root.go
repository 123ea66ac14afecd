// Package cli implements the smartcommit command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/audit"
	"github.com/sprite-ai/smartcommit/internal/config"
	"github.com/sprite-ai/smartcommit/internal/engine"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// clientID identifies CLI invocations to the rate limiter and audit log.
const clientID = "cli"

var (
	cfgFile  string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "smartcommit",
	Short: "Generate and check commit messages grounded in the diff",
	Long: `smartcommit writes commit messages from a diff, scores them against the
diff and a reference message, and refuses messages that describe changes the
diff does not contain.

Messages are produced by a generate, validate and refine loop. Every step is
recorded in an audit trail that can be inspected with "smartcommit audit".`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(generateCmd, checkCmd, benchCmd, reviewCmd, serveCmd, auditCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	log.SetLevel(c.LogLevel)
	cfg = c
	return nil
}

// newEngine builds the engine for one command run. The caller closes it.
func newEngine(ctx context.Context) (*engine.Engine, error) {
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, nil
}

// recordRun logs a scored CLI run as a request so audit statistics count
// CLI use the same way they count API calls.
func recordRun(ctx context.Context, eng *engine.Engine, command, raw string, start time.Time,
	message string, eval model.EvaluationResult, a safety.Assessment) {
	ev := audit.NewAPICall("cli "+command, clientID, 0, time.Since(start), raw)
	eng.Record(ctx, ev.WithResult(message, eval, a))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func gitRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
