package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config.toml if one does not already exist",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := flagConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if err := config.WriteDefaultConfig(path); err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}

			fmt.Println(path)

			return nil
		},
	}
}
