package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
)

func newReplicaIDsCmd() *cobra.Command {
	var (
		addr   string
		handle uint64
		count  int
	)

	cmd := &cobra.Command{
		Use:   "replica-ids",
		Short: "Reserve a range of FMIDs under the server's local replica (spec.md §6 0x7F)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			guid, gc, err := c.GetLocalReplicaIds(cmd.Context(), dispatch.Handle(handle), count)
			if err != nil {
				return fmt.Errorf("getting local replica ids: %w", err)
			}

			fmt.Printf("guid=%s starting_gc=%x\n", uuid.UUID(guid), gc)

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&handle, "handle", 0, "any valid handle; GetLocalReplicaIds has no session precondition")
	cmd.Flags().IntVar(&count, "count", 1, "number of FMIDs to reserve")

	return cmd
}
