package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/tasksync/internal/config"
)

// configFileTemplate is the commented starter config written by init.
const configFileTemplate = `# tasksync configuration

[device]
# Tablet task database connection. The password should come from the
# TASKSYNC_DEVICE_PASSWORD environment variable instead of this file.
host = "localhost"
port = 3306
user = "supernote"
database = "supernote"

[host]
# Path to the native reminders helper binary.
helper_path = ""
timeout = "30s"

[sync]
# prefer_recent, prefer_host, or prefer_device
conflict_resolution = "prefer_recent"
conflict_window_seconds = 60
sync_completed_tasks = true
completed_task_max_age_days = 180
dedupe_repeating_tasks = true

[logging]
# debug, info, warn, or error
log_level = "info"
# auto, text, or json
log_format = "auto"
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long:  "Create the config directory and write a commented starter config file.\nFails if a config file already exists.",
		RunE:  runInit,
	}
}

func runInit(_ *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configFileTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	statusf(flagQuiet, "Wrote %s\n", path)
	statusf(flagQuiet, "Edit it to point at your Device database and Host helper, then run 'tasksync test'.\n")

	return nil
}
