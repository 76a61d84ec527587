package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
)

func newGetBufferCmd() *cobra.Command {
	var (
		addr       string
		handle     uint64
		bufferSize uint32
	)

	cmd := &cobra.Command{
		Use:   "get-buffer",
		Short: "Pull the next FastTransfer chunk from a session handle (spec.md §6 0x4E)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			chunk, total, inProgress, status, err := c.GetBuffer(cmd.Context(), dispatch.Handle(handle), bufferSize)
			if err != nil {
				return fmt.Errorf("getting buffer: %w", err)
			}

			// Piped output (e.g. into a file or another process) gets bare
			// hex so it stays parseable; an interactive terminal also gets
			// a human-readable summary line.
			if isatty.IsTerminal(os.Stdout.Fd()) {
				fmt.Printf("status=%s total=%d in_progress=%d bytes=%d\n", status, total, inProgress, len(chunk))
			}

			fmt.Println(hex.EncodeToString(chunk))

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&handle, "handle", 0, "FastTransfer source handle (sync session or copy-to context)")
	cmd.Flags().Uint32Var(&bufferSize, "buffer-size", 1<<16, "requested buffer size in bytes")

	return cmd
}
