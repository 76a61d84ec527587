package main

import (
	"log/slog"
	"os"

	"github.com/tonimelisma/fxicsd/internal/config"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

// loadEffectiveConfig resolves the four-layer config chain (defaults ->
// file -> env -> CLI flags) the way the reference CLI's loadConfig does,
// minus the drive-selection step this single-store daemon has no use for.
func loadEffectiveConfig() (*config.Config, *slog.Logger, error) {
	bootstrapLogger := buildLogger(slog.LevelWarn)

	env := config.ReadEnvOverrides()
	cli := config.CLIOverrides{ConfigPath: flagConfigPath, LogLevel: flagLogLevel}

	cfg, err := config.Resolve(env, cli, bootstrapLogger)
	if err != nil {
		return nil, nil, err
	}

	return cfg, buildLogger(levelFromString(cfg.Logging.Level)), nil
}

func buildLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
