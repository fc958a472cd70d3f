package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the ingest engine's entrypoint. Subcommands below each own
// their piece of spec's operations: submit/submit-bulk drive jobs in,
// worker runs the continuously-polling pool, status reports job queue
// depth and resilience registry health, nuclear-retry drives an
// out-of-band rescan tick and prints nuclear store stats.
var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Resilient content ingestion engine.",
	Long: `ingest drives URLs through a cascade of fetch strategies, falls back
to external search when every strategy is exhausted, and escalates
permanently-stuck URLs to a human-intervention queue.`,
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	initLogger()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger configures the default slog logger as structured JSON,
// honoring LOG_LEVEL. Grounded on the teacher's cmd/worker/main.go
// initLogger.
func initLogger() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
