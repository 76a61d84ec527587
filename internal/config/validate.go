package config

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonimelisma/fxicsd/internal/chunker"
)

// Validation range constants.
const minBufferSize = 4096

// Validate checks all configuration values and returns all errors found. It
// accumulates every error rather than stopping at the first, so users see a
// complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateReplica(&cfg.Replica)...)
	errs = append(errs, validateTransfer(&cfg.Transfer)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	return errors.Join(errs...)
}

func validateReplica(r *ReplicaConfig) []error {
	if r.GUID == "" {
		return nil
	}

	if _, err := uuid.Parse(r.GUID); err != nil {
		return []error{fmt.Errorf("replica.guid: %w", err)}
	}

	return nil
}

func validateTransfer(t *TransferConfig) []error {
	bytes, err := ParseSize(t.DefaultBufferSize)
	if err != nil {
		return []error{fmt.Errorf("transfer.default_buffer_size: %w", err)}
	}

	if bytes < minBufferSize || bytes > chunker.MaxBufferSize {
		return []error{fmt.Errorf("transfer.default_buffer_size: must be between %d and %d bytes, got %d",
			minBufferSize, chunker.MaxBufferSize, bytes)}
	}

	return nil
}

func validateStore(s *StoreConfig) []error {
	var errs []error

	if s.DataDir == "" {
		errs = append(errs, errors.New("store.data_dir: must not be empty"))
	}

	if s.SpoolDir == "" {
		errs = append(errs, errors.New("store.spool_dir: must not be empty"))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug/info/warn/error, got %q", l.Level))
	}

	switch l.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be one of auto/text/json, got %q", l.Format))
	}

	return errs
}

func validateServer(s *ServerConfig) []error {
	if s.ListenAddr == "" {
		return []error{errors.New("server.listen_addr: must not be empty")}
	}

	return nil
}
