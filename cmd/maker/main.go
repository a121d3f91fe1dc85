// Package main implements the maker CLI: plan a task, price it, pick a voting
// margin and run it to completion with voting micro-agents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/maker/internal/config"
	"github.com/fyrsmithlabs/maker/internal/logging"
	"github.com/fyrsmithlabs/maker/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	// configPath overrides ~/.config/maker/config.yaml
	configPath string
	// logLevel overrides logging.level from the config file
	logLevel string
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "maker",
	Short: "Zero-error long-horizon task execution by voting",
	Long: `maker runs long tasks as a sequence of tiny steps. Every step is decided
by sampling a model repeatedly and accepting the first action that leads all
others by k votes, discarding red-flagged responses along the way.

Examples:
  maker plan "Sort this list of 200 names" --out sort.json
  maker cost --steps 1000 --k 3
  maker kmin --steps 1048575 --p 0.998
  maker run sort.json
  maker hanoi --disks 10 --simulate 0.99`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/maker/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(kminCmd)
	rootCmd.AddCommand(costCmd)
	rootCmd.AddCommand(hanoiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the maker version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "maker %s\n", version)
	},
}

// runtime bundles what commands that talk to a model or serve traffic need.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

// loadRuntime reads the runtime config and starts logging and telemetry.
// Callers must call close.
func loadRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, tel: tel}, nil
}

func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format

	lp := tel.LoggerProvider()
	lc.Output.OTEL = lp != nil
	return logging.NewLogger(lc, lp)
}

func (r *runtime) close(ctx context.Context) {
	_ = r.logger.Sync()
	if err := r.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
	}
}
