package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/sqlstore"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newRootCmd()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "configure", "import", "delete", "get-buffer", "replica-ids", "init-config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for s, want := range cases {
		assert.Equal(t, want, levelFromString(s), "input %q", s)
	}
}

func TestParseHandle(t *testing.T) {
	dec, err := parseHandle("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), dec)

	hexVal, err := parseHandle("0x2a")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), hexVal)

	_, err = parseHandle("not-a-number")
	assert.Error(t, err)
}

func TestParseHexKey(t *testing.T) {
	got, err := parseHexKey("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)

	_, err = parseHexKey("zz")
	assert.Error(t, err)
}

func TestParseProps_BuildsStringAndIntValues(t *testing.T) {
	props, err := parseProps([]string{"0x3001=hello"}, []string{"0x0e08=7"})
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.EqualValues(t, 0x3001, props[0].Tag)
	assert.EqualValues(t, 0x0e08, props[1].Tag)
}

func TestParseProps_RejectsMalformedPair(t *testing.T) {
	_, err := parseProps([]string{"no-equals-sign"}, nil)
	assert.Error(t, err)
}

func TestBootstrapRootFolder_CreatesOnceThenReuses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := sqlstore.Open(ctx, dir+"/test.db", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer st.Close()

	first, err := bootstrapRootFolder(ctx, st)
	require.NoError(t, err)

	second, err := bootstrapRootFolder(ctx, st)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
