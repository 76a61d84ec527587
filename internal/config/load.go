package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// CLIOverrides holds values supplied directly on the command line. These
// take precedence over everything else in the four-layer chain (defaults
// -> file -> env -> CLI flags).
type CLIOverrides struct {
	ConfigPath string
	DataDir    string
	ListenAddr string
	LogLevel   string
}

// Resolve builds the effective Config by loading the config file (if one
// exists at the resolved path) over the defaults, then applying env
// overrides, then CLI overrides, in that order.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, error) {
	path := firstNonEmpty(cli.ConfigPath, env.ConfigPath, DefaultConfigPath())

	var cfg *Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path, logger)
			if err != nil {
				return nil, err
			}

			cfg = loaded
		}
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg, env)
	applyCLIOverrides(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed after overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.DataDir != "" {
		cfg.Store.DataDir = env.DataDir
	}

	if env.ListenAddr != "" {
		cfg.Server.ListenAddr = env.ListenAddr
	}

	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.DataDir != "" {
		cfg.Store.DataDir = cli.DataDir
	}

	if cli.ListenAddr != "" {
		cfg.Server.ListenAddr = cli.ListenAddr
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
