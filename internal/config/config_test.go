package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestDefaultConfig_PassesValidate(t *testing.T) {
	require.NoError(t, config.Validate(config.DefaultConfig()))
}

func TestLoad_ParsesOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
[replica]
guid = "11111111-1111-1111-1111-111111111111"

[transfer]
default_buffer_size = "512KiB"

[server]
listen_addr = "0.0.0.0:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path, discardLogger())
	require.NoError(t, err)

	require.Equal(t, "11111111-1111-1111-1111-111111111111", cfg.Replica.GUID)
	require.Equal(t, "512KiB", cfg.Transfer.DefaultBufferSize)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	require.NotEmpty(t, cfg.Store.DataDir, "unset fields must retain their defaults")
}

func TestLoad_RejectsUnknownKeyWithSuggestion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevle = \"debug\"\n"), 0o644))

	_, err := config.Load(path, discardLogger())
	require.Error(t, err)
	require.Contains(t, err.Error(), "did you mean")
}

func TestLoad_RejectsInvalidReplicaGUID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("[replica]\nguid = \"not-a-uuid\"\n"), 0o644))

	_, err := config.Load(path, discardLogger())
	require.Error(t, err)
}

func TestResolve_EnvThenCLIOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nlisten_addr = \"127.0.0.1:1\"\n"), 0o644))

	env := config.EnvOverrides{ConfigPath: path, ListenAddr: "127.0.0.1:2"}
	cli := config.CLIOverrides{ListenAddr: "127.0.0.1:3"}

	cfg, err := config.Resolve(env, cli, discardLogger())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:3", cfg.Server.ListenAddr, "CLI flag must win over env, which must win over the file")
}

func TestResolve_FallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	env := config.EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}

	cfg, err := config.Resolve(env, config.CLIOverrides{}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig().Transfer.DefaultBufferSize, cfg.Transfer.DefaultBufferSize)
}
