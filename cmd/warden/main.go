package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/infrastructure/config"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden keeps a game server running on its daily schedule.",
		Long: "Warden supervises a console-driven game server: it starts the server\n" +
			"when the daily window opens, warns players before the window closes,\n" +
			"stops the server on schedule, and holds off restarts when the server\n" +
			"keeps crashing.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newValidateCmd(&configPath))

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of warden",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warden version %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
