package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func TestHolder_UpdateIsVisibleToLaterReads(t *testing.T) {
	h := config.NewHolder(config.DefaultConfig(), "/tmp/fxicsd/config.toml")

	require.Equal(t, "/tmp/fxicsd/config.toml", h.Path())
	require.Equal(t, config.DefaultConfig().Logging.Level, h.Config().Logging.Level)

	updated := config.DefaultConfig()
	updated.Logging.Level = "debug"
	h.Update(updated)

	require.Equal(t, "debug", h.Config().Logging.Level)
}
