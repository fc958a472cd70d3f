package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	bulkFile        string
	bulkConcurrency int
	bulkPreferred   []string
)

var submitBulkCmd = &cobra.Command{
	Use:   "submit-bulk",
	Short: "Run every URL in a file through the cascade synchronously, bounded by a concurrency limit.",
	Long: `submit-bulk reads newline-separated URLs from --file and fetches each
through the Strategy Cascade Engine directly (spec §4.12's bulk_process),
rather than enqueueing them as jobs for the worker pool. Use this for
one-off backfills; use "submit"/the worker pool for ongoing ingestion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bulkFile == "" {
			return fmt.Errorf("--file is required")
		}
		urls, err := readLines(bulkFile)
		if err != nil {
			return fmt.Errorf("submit-bulk: %w", err)
		}
		if len(urls) == 0 {
			return fmt.Errorf("submit-bulk: %s contains no URLs", bulkFile)
		}

		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("submit-bulk: %w", err)
		}
		defer a.Close()

		concurrency := bulkConcurrency
		if concurrency <= 0 {
			concurrency = a.cfg.BulkConcurrency
		}

		results := a.pool.BulkProcess(cmd.Context(), urls, bulkPreferred, concurrency)
		succeeded := 0
		for _, url := range urls {
			result := results[url]
			status := "failed"
			if result.Success {
				status = "ok"
				succeeded++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", status, url, result.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d/%d succeeded\n", succeeded, len(urls))
		return nil
	},
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func init() {
	submitBulkCmd.Flags().StringVar(&bulkFile, "file", "", "path to a newline-separated list of URLs (required)")
	submitBulkCmd.Flags().IntVar(&bulkConcurrency, "concurrency", 0, "bounded fetch concurrency (0 uses BULK_CONCURRENCY)")
	submitBulkCmd.Flags().StringArrayVar(&bulkPreferred, "preferred-strategy", nil, "try these strategy names before the rest of the cascade")
	rootCmd.AddCommand(submitBulkCmd)
}
