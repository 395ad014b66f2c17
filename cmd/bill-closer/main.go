package main

import (
	"context"
	"os"
	"time"

	"finhouse/internal/cli"
	"finhouse/internal/log"
	"finhouse/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentCloser)

	res := cli.OpenBackend(context.Background(), cfg, logger)
	repo := res.Repository

	closer := services.NewBillCloser(repo, services.BillCloserConfig{Interval: cfg.CloseInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := closer.Stop(ctx); err != nil {
			logger.Warn("Bill closer did not stop cleanly", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting bill-closer", "interval", cfg.CloseInterval, "backend", cfg.DataBackend)
	if err := closer.Start(ctx); err != nil {
		logger.Error("Failed to start bill closer", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Bill closer stopped")
}
