package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func TestReplicaGUIDOrGenerate_GeneratesWhenEmpty(t *testing.T) {
	cfg := config.DefaultConfig()

	guid, generated, err := config.ReplicaGUIDOrGenerate(cfg)
	require.NoError(t, err)
	require.True(t, generated)
	require.NotEqual(t, [16]byte{}, [16]byte(guid))
}

func TestReplicaGUIDOrGenerate_ParsesConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Replica.GUID = "11111111-1111-1111-1111-111111111111"

	guid, generated, err := config.ReplicaGUIDOrGenerate(cfg)
	require.NoError(t, err)
	require.False(t, generated)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", guid.String())
}
