package config

import "path/filepath"

// Default values for every configurable setting. Loading starts from these
// and layers the config file, environment, and CLI flags on top.
const (
	defaultDevicePort = 3306
	defaultDeviceUser = "supernote"
	defaultDeviceDB   = "supernote"

	defaultHostTimeout = "30s"

	defaultConflictResolution    = "prefer_recent"
	defaultConflictWindowSeconds = 60
	defaultCompletedMaxAgeDays   = 180

	defaultLogLevel  = "info"
	defaultLogFormat = "auto"

	stateFileName = "state.db"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Host:     "localhost",
			Port:     defaultDevicePort,
			User:     defaultDeviceUser,
			Database: defaultDeviceDB,
		},
		Host: HostConfig{
			Timeout: defaultHostTimeout,
		},
		Sync: SyncConfig{
			ConflictResolution:      defaultConflictResolution,
			ConflictWindowSeconds:   defaultConflictWindowSeconds,
			SyncCompletedTasks:      true,
			CompletedTaskMaxAgeDays: defaultCompletedMaxAgeDays,
			DedupeRepeatingTasks:    true,
		},
		State: StateConfig{},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

// DefaultStatePath returns the default location of the sync-state database.
func DefaultStatePath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return stateFileName
	}

	return filepath.Join(dir, stateFileName)
}
