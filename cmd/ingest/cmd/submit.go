package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	submitURL      string
	submitSource   string
	submitPriority int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enqueue one URL as a pending job.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitURL == "" {
			return fmt.Errorf("--url is required")
		}

		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		defer a.Close()

		id := newID()
		data := map[string]any{
			"url":          submitURL,
			"source":       submitSource,
			"submitted_at": time.Now().UTC(),
		}
		if err := a.queue.Enqueue(cmd.Context(), id, "url-ingest", submitPriority, data); err != nil {
			return fmt.Errorf("submit: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %s for %s\n", id, submitURL)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitURL, "url", "", "URL to ingest (required)")
	submitCmd.Flags().StringVar(&submitSource, "source", "", "source label recorded alongside the job")
	submitCmd.Flags().IntVar(&submitPriority, "priority", 5, "job priority (higher runs first)")
	rootCmd.AddCommand(submitCmd)
}
