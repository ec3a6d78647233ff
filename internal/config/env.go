package config

import "os"

// Environment variable names for overrides. The Device password is
// environment-only by convention; keeping it out of the config file keeps
// it out of backups and dotfile repos.
const (
	EnvConfig         = "TASKSYNC_CONFIG"
	EnvDevicePassword = "TASKSYNC_DEVICE_PASSWORD"
	EnvStateDB        = "TASKSYNC_STATE_DB"
	EnvLogLevel       = "TASKSYNC_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath     string // TASKSYNC_CONFIG: override config file path
	DevicePassword string // TASKSYNC_DEVICE_PASSWORD: Device database password
	StateDB        string // TASKSYNC_STATE_DB: sync-state database path
	LogLevel       string // TASKSYNC_LOG_LEVEL: log level override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		DevicePassword: os.Getenv(EnvDevicePassword),
		StateDB:        os.Getenv(EnvStateDB),
		LogLevel:       os.Getenv(EnvLogLevel),
	}
}
