package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
)

func newConfigureCmd() *cobra.Command {
	var (
		addr    string
		folder  uint64
		fai     bool
		unicode bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Open a sync session against a folder and print its handle (spec.md §6 0x70)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			flags := session.Flags{Unicode: unicode, FAI: fai}

			h, err := c.SyncConfigure(cmd.Context(), store.Handle(folder), session.ContentsMode, flags, nil)
			if err != nil {
				return fmt.Errorf("configuring sync session: %w", err)
			}

			fmt.Println(uint64(h))

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&folder, "folder", 1, "folder handle to synchronize")
	cmd.Flags().BoolVar(&fai, "fai", false, "synchronize folder-associated information instead of contents")
	cmd.Flags().BoolVar(&unicode, "unicode", true, "request unicode string properties")

	return cmd
}
