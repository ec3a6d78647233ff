package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/tasksync/internal/config"
	"github.com/tonimelisma/tasksync/internal/device"
	"github.com/tonimelisma/tasksync/internal/host"
	"github.com/tonimelisma/tasksync/internal/sync"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Config

// skipConfigCommands lists commands that run before a valid configuration
// exists: init writes the initial config file.
var skipConfigCommands = map[string]bool{
	"tasksync init": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasksync",
		Short:   "Bidirectional to-do sync between a tablet and the OS reminders service",
		Long:    "Syncs tasks between a tablet's task database and the OS reminders service,\nwith conflict resolution, category mirroring, and document-link preservation.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newClearStateCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg for subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only pass --dry-run to the resolver if the user explicitly set it.
	if f := cmd.Flags().Lookup("dry-run"); f != nil && f.Changed {
		v := f.Value.String() == "true"
		cli.DryRun = &v
	}

	env := config.ReadEnvOverrides()

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Format "auto" picks
// text on a terminal and JSON otherwise.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	format := config.DefaultConfig().Logging.LogFormat

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the sync-state database from the resolved configuration.
func openStore(logger *slog.Logger) (*sync.SQLiteStore, error) {
	return sync.NewStore(resolvedCfg.State.DBPath, logger)
}

// openDevice connects the Device adapter from the resolved configuration.
func openDevice(logger *slog.Logger) (*device.Adapter, error) {
	return device.Open(device.Config{
		Host:     resolvedCfg.Device.Host,
		Port:     resolvedCfg.Device.Port,
		User:     resolvedCfg.Device.User,
		Password: resolvedCfg.Device.Password,
		Database: resolvedCfg.Device.Database,
	}, logger)
}

// openHost builds the Host adapter from the resolved configuration.
func openHost(logger *slog.Logger) (*host.Adapter, error) {
	return host.New(resolvedCfg.Host.HelperPath, resolvedCfg.HostTimeout(), logger)
}
