// Package cli wires the ghcnd command-line interface: a fetch command that
// builds per-state period summaries from the NOAA CDO API, and a merge
// command that combines them into one nationwide dataset.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ghcnd",
		Short: "GHCND representative-station pipeline",
		Long: `ghcnd builds a per-state climate record from NOAA GHCND daily observations.

For each state it picks one representative station, fetches that station's
daily records year by year (resuming from cached parts on re-runs), and
aggregates them to weekly or monthly period summaries. A second command
merges every state's summary into one nationwide dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json or text)")

	root.AddCommand(newFetchCmd())
	root.AddCommand(newMergeCmd())
	return root
}
