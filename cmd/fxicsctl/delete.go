package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
)

func newDeleteCmd() *cobra.Command {
	var (
		addr       string
		handle     uint64
		sourceKeys []string
		hard       bool
		hierarchy  bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete objects named by source key from an open sync session (spec.md §6 0x74)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := make([][]byte, len(sourceKeys))

			for i, s := range sourceKeys {
				k, err := parseHexKey(s)
				if err != nil {
					return fmt.Errorf("parsing source key %q: %w", s, err)
				}

				keys[i] = k
			}

			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ImportDeletes(cmd.Context(), dispatch.Handle(handle), keys, hard, hierarchy); err != nil {
				return fmt.Errorf("importing deletes: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&handle, "handle", 0, "sync session handle from configure")
	cmd.Flags().StringArrayVar(&sourceKeys, "source-key", nil, "hex-encoded source key (repeatable)")
	cmd.Flags().BoolVar(&hard, "hard", false, "permanently delete instead of soft-deleting")
	cmd.Flags().BoolVar(&hierarchy, "hierarchy", false, "the keys name folders instead of messages")

	return cmd
}
