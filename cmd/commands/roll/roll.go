package roll

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"imageroller/internal/config"
	"imageroller/internal/providers"
	"imageroller/internal/roller"
	"imageroller/internal/runlog"
	"imageroller/internal/services/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Run one rolling pass over the configured servers",
		Long: `Run one rolling pass: create a fresh snapshot image for every
configured server, wait for each to become available, then prune the
oldest images past the server's retention rule.

The exit code is non-zero only when at least one server's pass is a
hard failure. Partial failures (for example a snapshot that was
created but one stale image could not be deleted) are reported and
left for the next run to correct.

Examples:
  imageroller roll -c config.yaml
  imageroller roll -c config.yaml -a credentials.yaml
  imageroller roll -c config.yaml -s web-1 --dry-run
  imageroller roll -c config.yaml -o json`,
		RunE:         runRoll,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("config", "c", "", "Path to the run configuration file (required)")
	cmd.Flags().StringP("authconfig", "a", "", "Path to a credentials file (default: OS keychain)")
	cmd.Flags().StringP("server", "s", "", "Roll only this configured server (name or ID)")
	cmd.Flags().Bool("dry-run", false, "Evaluate and print the plan without creating or deleting")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
	cmd.Flags().String("log-level", "warn", "Log verbosity: debug, info, warn, error")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runRoll(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	authPath, _ := cmd.Flags().GetString("authconfig")
	serverFilter, _ := cmd.Flags().GetString("server")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")
	logLevel, _ := cmd.Flags().GetString("log-level")

	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	log, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serverFilter != "" {
		if err := cfg.SelectServer(serverFilter); err != nil {
			return err
		}
	}

	store, err := auth.StoreFor(authPath)
	if err != nil {
		return err
	}

	providers.RegisterHetzner(cfg.RequestTimeout.Std())
	provider, err := providers.Get(cfg.Provider, store)
	if err != nil {
		return err
	}

	engine := roller.NewEngine(provider, roller.EngineConfig{
		PollInterval: cfg.PollInterval.Std(),
		PollDeadline: cfg.PollDeadline.Std(),
		DryRun:       dryRun,
	}, log)
	coordinator := roller.NewCoordinator(engine, cfg.Concurrency, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := coordinator.Run(ctx, cfg.Servers)

	if !dryRun {
		recordRun(log, report)
	}

	if output == "json" {
		err = renderJSON(cmd.OutOrStdout(), report)
	} else {
		err = renderTable(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}

	if report.Failed() {
		return fmt.Errorf("run %s finished with failures", report.RunID)
	}
	return nil
}

// recordRun appends the run to the local history. Best effort: the
// run's outcome is already decided, so a history error is only logged.
func recordRun(log *zap.Logger, report roller.Report) {
	repo, err := runlog.Open()
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		return
	}
	defer repo.Close()

	for _, res := range report.Results {
		entry := runlog.FromResult(report.RunID, report.FinishedAt, res)
		if err := repo.Save(&entry); err != nil {
			log.Warn("failed to record run entry",
				zap.String("server", res.ServerID), zap.Error(err))
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
