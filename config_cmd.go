package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the fully resolved configuration after applying defaults, the\nconfig file, environment variables, and CLI flags. Secrets are redacted.",
		RunE:  runConfig,
	}
}

// effectiveConfig is the redacted view of the resolved configuration.
type effectiveConfig struct {
	Device  map[string]any `json:"device"`
	Host    map[string]any `json:"host"`
	Sync    map[string]any `json:"sync"`
	State   map[string]any `json:"state"`
	Logging map[string]any `json:"logging"`
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := resolvedCfg

	password := "(not set)"
	if cfg.Device.Password != "" {
		password = "(redacted)"
	}

	view := effectiveConfig{
		Device: map[string]any{
			"host":     cfg.Device.Host,
			"port":     cfg.Device.Port,
			"user":     cfg.Device.User,
			"password": password,
			"database": cfg.Device.Database,
		},
		Host: map[string]any{
			"helper_path": cfg.Host.HelperPath,
			"timeout":     cfg.Host.Timeout,
		},
		Sync: map[string]any{
			"conflict_resolution":         cfg.Sync.ConflictResolution,
			"conflict_window_seconds":     cfg.Sync.ConflictWindowSeconds,
			"sync_completed_tasks":        cfg.Sync.SyncCompletedTasks,
			"completed_task_max_age_days": cfg.Sync.CompletedTaskMaxAgeDays,
			"dedupe_repeating_tasks":      cfg.Sync.DedupeRepeatingTasks,
			"dry_run":                     cfg.Sync.DryRun,
		},
		State: map[string]any{
			"db_path": cfg.State.DBPath,
		},
		Logging: map[string]any{
			"log_level":  cfg.Logging.LogLevel,
			"log_format": cfg.Logging.LogFormat,
		},
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	fmt.Printf("[device]\n  host = %s\n  port = %d\n  user = %s\n  password = %s\n  database = %s\n",
		cfg.Device.Host, cfg.Device.Port, cfg.Device.User, password, cfg.Device.Database)
	fmt.Printf("[host]\n  helper_path = %s\n  timeout = %s\n",
		cfg.Host.HelperPath, cfg.Host.Timeout)
	fmt.Printf("[sync]\n  conflict_resolution = %s\n  conflict_window_seconds = %d\n  sync_completed_tasks = %t\n  completed_task_max_age_days = %d\n  dedupe_repeating_tasks = %t\n  dry_run = %t\n",
		cfg.Sync.ConflictResolution, cfg.Sync.ConflictWindowSeconds, cfg.Sync.SyncCompletedTasks,
		cfg.Sync.CompletedTaskMaxAgeDays, cfg.Sync.DedupeRepeatingTasks, cfg.Sync.DryRun)
	fmt.Printf("[state]\n  db_path = %s\n", cfg.State.DBPath)
	fmt.Printf("[logging]\n  log_level = %s\n  log_format = %s\n",
		cfg.Logging.LogLevel, cfg.Logging.LogFormat)

	return nil
}
