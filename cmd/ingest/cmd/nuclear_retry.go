package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nuclearRetryCmd = &cobra.Command{
	Use:   "nuclear-retry",
	Short: "Operate the Nuclear Retry Store out of band from the worker's own scheduled tick.",
}

var nuclearRetryTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one rescan pass over every due Nuclear Failure record right now.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("nuclear-retry tick: %w", err)
		}
		defer a.Close()

		a.scheduler.Tick(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "tick complete")
		return nil
	},
}

var nuclearRetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print counts by retry status and the oldest still-pending record.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("nuclear-retry status: %w", err)
		}
		defer a.Close()

		stats, err := a.nukeStore.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("nuclear-retry status: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "nuclear_failures by retry_status:")
		for status, count := range stats.CountsByStatus {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %d\n", status, count)
		}
		if stats.OldestPendingAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "oldest pending since: %s\n", stats.OldestPendingAt.Format("2006-01-02T15:04:05Z07:00"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending records")
		}
		return nil
	},
}

func init() {
	nuclearRetryCmd.AddCommand(nuclearRetryTickCmd)
	nuclearRetryCmd.AddCommand(nuclearRetryStatusCmd)
	rootCmd.AddCommand(nuclearRetryCmd)
}
