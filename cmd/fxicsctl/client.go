package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/tonimelisma/fxicsd/internal/transport"
)

// dial opens a transport.Client against addr, resolving the configured
// server's listen address when addr is empty.
func dial(ctx context.Context, addr string) (*transport.Client, error) {
	if addr == "" {
		cfg, _, err := loadEffectiveConfig()
		if err != nil {
			return nil, fmt.Errorf("resolving default address: %w", err)
		}

		addr = cfg.Server.ListenAddr
	}

	return transport.Dial(ctx, "ws://"+addr+"/fxics")
}

// parseHandle parses a decimal or 0x-prefixed hex handle value.
func parseHandle(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	return strconv.ParseUint(s, base, 64)
}

// parseHexKey decodes a hex-encoded source key, e.g. for --source-key.
func parseHexKey(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}
