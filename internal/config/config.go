// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for tasksync. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Device  DeviceConfig  `toml:"device"`
	Host    HostConfig    `toml:"host"`
	Sync    SyncConfig    `toml:"sync"`
	State   StateConfig   `toml:"state"`
	Logging LoggingConfig `toml:"logging"`
}

// DeviceConfig holds the connection parameters for the tablet's task
// database. The password should normally come from the environment rather
// than the config file.
type DeviceConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// HostConfig locates the native helper binary used to reach the OS
// reminders service.
type HostConfig struct {
	HelperPath string `toml:"helper_path"`
	Timeout    string `toml:"timeout"`
}

// SyncConfig controls engine behavior: conflict resolution, completed-task
// handling, and repeating-task deduplication.
type SyncConfig struct {
	ConflictResolution      string `toml:"conflict_resolution"`
	ConflictWindowSeconds   int    `toml:"conflict_window_seconds"`
	SyncCompletedTasks      bool   `toml:"sync_completed_tasks"`
	CompletedTaskMaxAgeDays int    `toml:"completed_task_max_age_days"`
	DedupeRepeatingTasks    bool   `toml:"dedupe_repeating_tasks"`
	DryRun                  bool   `toml:"dry_run"`
}

// StateConfig locates the sync-state database.
type StateConfig struct {
	DBPath string `toml:"db_path"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // auto, text, or json
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value" — --dry-run=false is different from
// not passing --dry-run at all.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	DryRun     *bool  // --dry-run flag
	LogLevel   string // --log-level flag
}
