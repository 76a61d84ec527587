package config

import "path/filepath"

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen to be safe, reasonable
// starting points that work without any config file.
const (
	defaultBufferSize = "1MiB"
	defaultLogLevel   = "info"
	defaultLogFormat  = "auto"
	defaultListenAddr = "127.0.0.1:8486"
)

// DefaultConfig returns a Config populated with all default values. This is
// used both as the starting point for TOML decoding (so unset fields
// retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		Transfer: TransferConfig{DefaultBufferSize: defaultBufferSize},
		Store: StoreConfig{
			DataDir:  dataDir,
			SpoolDir: filepath.Join(dataDir, "spool"),
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Server: ServerConfig{ListenAddr: defaultListenAddr},
	}
}
