package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finhouse/internal/amqp"
	"finhouse/internal/cli"
	"finhouse/internal/log"
	"finhouse/internal/services"
	"finhouse/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the refresh worker")
		os.Exit(1)
	}

	res := cli.OpenBackend(context.Background(), cfg, logger)
	repo := res.Repository

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	refresher := services.NewBillRefresher(repo)
	refreshWorker := worker.NewRefreshWorker(repo, refresher)

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stopConsuming()
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting finhouse-worker", "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	go func() {
		err := amqpClient.ConsumeTransactionChanges(consumeCtx, refreshWorker.HandleTransactionChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
