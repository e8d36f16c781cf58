package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the universe-server CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe-server",
		Short: "Universe simulation engine",
		Long: `universe-server moves locations through space on a scheduler and runs
attack, mining and construction cycles over a registry of ships, stations
and fleets. State can be saved on shutdown and restored on start.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInspectCmd())

	return cmd
}
