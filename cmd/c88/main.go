// Package main is the entry point of c88, a terminal dashboard and reset
// daemon for 88code subscription credits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/version"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "c88",
	Short: "88code credits dashboard with scheduled resets",
	Long: `c88 shows the credit balance of every 88code subscription, projects when
each one runs dry and resets credits inside configurable daily windows.

Without a subcommand the terminal dashboard starts with the reset scheduler
embedded. Use "c88 daemon" to run the scheduler headless.

Configuration is read from the environment and from .env files in the
current directory or ~/.config/credits-tui/.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runTUI(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn or error (default from LOG_LEVEL)")

	rootCmd.Version = version.GetVersion()
	rootCmd.SetVersionTemplate(version.Info() + "\n")

	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(windowsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig loads the configuration and applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
