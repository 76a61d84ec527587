// Command fxicsctl is a small demo client/server driving the fxicsd
// reference store over its websocket RPC transport, the way the
// reference CLI's root command drives its Graph client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx := shutdownContext(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		exitOnError(err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fxicsctl",
		Short:         "Drive an fxicsd reference store over its demo RPC transport",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug/info/warn/error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigureCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newGetBufferCmd())
	cmd.AddCommand(newReplicaIDsCmd())
	cmd.AddCommand(newInitConfigCmd())

	return cmd
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
