package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/nanoprobe/cmd/nanoprobe/commands"
	"github.com/teranos/nanoprobe/logger"
)

var rootCmd = &cobra.Command{
	Use:   "nanoprobe",
	Short: "nanoprobe - host monitoring agent",
	Long: `nanoprobe - host monitoring agent.

Runs monitor checks against named resources on this host. At most one check
per resource runs at a time; checks repeat on their schedule and back off
while failing.

Available commands:
  run      - Run monitors from a definitions file
  am       - Manage agent configuration ("I am")
  history  - Inspect and prune execution history
  version  - Show version information

Examples:
  nanoprobe run                          # Run monitors.toml until interrupted
  nanoprobe run --once                   # Run every monitor once and exit
  nanoprobe am show --sources            # Show configuration and where it came from
  nanoprobe history ls --resource nic0   # Recent runs for one resource`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
