package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ingestengine/internal/opsapi"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the worker pool, the nuclear-retry scheduler, and the ops HTTP surface until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ops := opsapi.New(a.cfg.OpsAddr, slog.Default(), a.statusFunc()).
			WithResilienceSnapshot(func(ctx context.Context) any { return a.registry.Snapshot() }).
			WithNuclearSnapshot(func(ctx context.Context) any {
				stats, err := a.nukeStore.Stats(ctx)
				if err != nil {
					return map[string]string{"error": err.Error()}
				}
				return stats
			})

		opsErr := make(chan error, 1)
		go func() {
			if err := ops.Start(ctx); err != nil && err.Error() != "http: Server closed" {
				opsErr <- err
			}
		}()

		if err := a.scheduler.Start(a.cfg.NuclearRetrySchedule); err != nil {
			return fmt.Errorf("worker: start nuclear scheduler: %w", err)
		}
		defer a.scheduler.Stop()

		poolDone := make(chan struct{})
		go func() {
			a.pool.Run(ctx)
			close(poolDone)
		}()

		ops.SetReady(true)
		slog.Info("worker started", slog.String("ops_addr", a.cfg.OpsAddr), slog.Int("pool_size", a.cfg.WorkerPoolSize))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
			slog.Info("shutdown signal received")
		case err := <-opsErr:
			slog.Error("ops server failed", slog.Any("error", err))
		}

		cancel()
		<-poolDone
		slog.Info("worker stopped")
		return nil
	},
}

// statusFunc reports the worker pool as unhealthy only once the database
// connection itself has gone bad; everything else self-heals through
// retries, backoff, and the nuclear escalation path.
func (a *app) statusFunc() func(ctx context.Context) map[string]string {
	return func(ctx context.Context) map[string]string {
		components := map[string]string{}
		if err := a.db.PingContext(ctx); err != nil {
			components["database"] = err.Error()
		}
		return components
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
