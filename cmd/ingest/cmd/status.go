package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ingestengine/internal/domain/entity"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot snapshot of queue depth and resilience registry health.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		defer a.Close()

		counts, err := a.queue.CountsByStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "worker_jobs by status:")
		for _, status := range []entity.JobStatus{entity.JobPending, entity.JobRunning, entity.JobCompleted, entity.JobFailed} {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %d\n", status, counts[status])
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\nresilience registry:")
		for _, health := range a.registry.Snapshot() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %-10s success_rate=%.2f requests=%d failures=%d\n",
				health.Service, health.Health, health.SuccessRate, health.TotalRequests, health.TotalFailures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
