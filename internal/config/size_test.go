package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"1024", 1024},
		{"1KiB", 1024},
		{"1MiB", 1024 * 1024},
		{"1KB", 1000},
		{"1MB", 1_000_000},
		{"2.5MiB", 2_621_440},
	}

	for _, c := range cases {
		got, err := config.ParseSize(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestParseSize_RejectsGarbage(t *testing.T) {
	_, err := config.ParseSize("banana")
	require.Error(t, err)
}

func TestParseSize_RejectsNegative(t *testing.T) {
	_, err := config.ParseSize("-5")
	require.Error(t, err)
}
