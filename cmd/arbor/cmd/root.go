package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// rootCmd is the base command for the arbor CLI.
var rootCmd = &cobra.Command{
	Use:     "arbor",
	Short:   "Arbor smart-account CLI",
	Long:    "Arbor CLI for running and inspecting a modular smart-account kernel.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command with a cancellable context for graceful
// shutdown.
func Execute(ctx context.Context) {
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
