package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finhouse/internal/amqp"
	"finhouse/internal/cache"
	"finhouse/internal/cli"
	"finhouse/internal/core"
	apphttp "finhouse/internal/http"
	"finhouse/internal/log"
	"finhouse/internal/middleware/ratelimit"
	"finhouse/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	res := cli.OpenBackend(ctx, cfg, logger)
	repo := res.Repository

	// Change notifications are optional; without a broker bills are still
	// refreshed whenever they are read.
	var opts []services.Option
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change notifications", "error", err)
			amqpClient = nil
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	}

	cardCache := cache.NewLRUCache[core.CreditCard](cfg.CardCacheSize, cfg.CardCacheTTL)
	janitor := cache.NewJanitor()
	janitor.Register(cardCache)
	janitor.Start(cfg.CardCacheTTL)

	cards := services.NewCardService(repo, cardCache)
	svc := apphttp.Services{
		Transactions: services.NewTransactionService(repo, opts...),
		Accounts:     services.NewAccountService(repo),
		Cards:        cards,
		Billing:      services.NewBillingService(repo, cards, opts...),
	}

	loc, _ := cfg.Location()
	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:    logger.WithComponent(log.ComponentHTTP),
		RateLimit: ratelimit.DefaultConfig(),
		Location:  loc,
		Ready:     repo.Ping,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		janitor.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting finhouse server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.BillingTimezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
