package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func TestWriteDefaultConfig_CreatesFileOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, config.WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "fxicsd configuration")

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, config.WriteDefaultConfig(path), "must not overwrite an existing file")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "custom", string(data))
}
