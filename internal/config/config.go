// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for fxicsd.
package config

// Config is the top-level configuration structure for one fxicsd instance.
// Unlike the reference CLI's per-drive sections, an fxicsd instance serves
// one reference store under one local replica, so there is exactly one
// flat Config, no section keyed by an external identifier.
type Config struct {
	Replica  ReplicaConfig  `toml:"replica"`
	Transfer TransferConfig `toml:"transfer"`
	Store    StoreConfig    `toml:"store"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
}

// ReplicaConfig identifies the local replica (spec.md §3 "Replica").
type ReplicaConfig struct {
	// GUID is the local replica's GUID, persisted once a store is
	// provisioned. Empty means "mint one and remember it" (see
	// ReplicaGUIDOrGenerate).
	GUID string `toml:"guid"`
}

// TransferConfig governs the stream chunker (spec.md §4.4).
type TransferConfig struct {
	DefaultBufferSize string `toml:"default_buffer_size"`
}

// StoreConfig locates the reference store's on-disk state.
type StoreConfig struct {
	DataDir  string `toml:"data_dir"`
	SpoolDir string `toml:"spool_dir"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// ServerConfig controls the demo websocket listener.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}
