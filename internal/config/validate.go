package config

import (
	"errors"
	"fmt"
	"time"
)

// Valid conflict_resolution values.
var validConflictStrategies = map[string]bool{
	"prefer_recent": true,
	"prefer_host":   true,
	"prefer_device": true,
}

// Valid log levels and formats.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks a Config for invalid values. All problems are reported
// together so the user fixes the file in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if !validConflictStrategies[cfg.Sync.ConflictResolution] {
		errs = append(errs, fmt.Errorf(
			"invalid conflict_resolution %q (valid: prefer_recent, prefer_host, prefer_device)",
			cfg.Sync.ConflictResolution))
	}

	if cfg.Sync.ConflictWindowSeconds < 0 {
		errs = append(errs, fmt.Errorf(
			"conflict_window_seconds must not be negative, got %d", cfg.Sync.ConflictWindowSeconds))
	}

	if cfg.Sync.CompletedTaskMaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf(
			"completed_task_max_age_days must not be negative, got %d", cfg.Sync.CompletedTaskMaxAgeDays))
	}

	if cfg.Device.Port < 1 || cfg.Device.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid device port %d", cfg.Device.Port))
	}

	if cfg.Host.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Host.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid host timeout %q: %w", cfg.Host.Timeout, err))
		}
	}

	if !validLogLevels[cfg.Logging.LogLevel] {
		errs = append(errs, fmt.Errorf(
			"invalid log_level %q (valid: debug, info, warn, error)", cfg.Logging.LogLevel))
	}

	if !validLogFormats[cfg.Logging.LogFormat] {
		errs = append(errs, fmt.Errorf(
			"invalid log_format %q (valid: auto, text, json)", cfg.Logging.LogFormat))
	}

	return errors.Join(errs...)
}

// HostTimeout returns the parsed per-call helper timeout. Validate has
// already checked the string parses.
func (c *Config) HostTimeout() time.Duration {
	d, err := time.ParseDuration(c.Host.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}

	return d
}

// ConflictWindow returns the prefer_recent tie window as a duration.
func (c *Config) ConflictWindow() time.Duration {
	return time.Duration(c.Sync.ConflictWindowSeconds) * time.Second
}

// CompletedMaxAge returns the completed-task age cutoff as a duration;
// zero disables the filter.
func (c *Config) CompletedMaxAge() time.Duration {
	return time.Duration(c.Sync.CompletedTaskMaxAgeDays) * 24 * time.Hour
}
