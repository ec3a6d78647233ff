package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.DevicePassword != "" {
		cfg.Device.Password = env.DevicePassword
	}

	if env.StateDB != "" {
		cfg.State.DBPath = env.StateDB
	}

	if env.LogLevel != "" {
		cfg.Logging.LogLevel = env.LogLevel
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.DryRun != nil {
		cfg.Sync.DryRun = *cli.DryRun
	}

	if cli.LogLevel != "" {
		cfg.Logging.LogLevel = cli.LogLevel
	}

	// 5. Fill path defaults after all overrides
	if cfg.State.DBPath == "" {
		cfg.State.DBPath = DefaultStatePath()
	}

	// 6. Validate the final resolved configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}
