package main

import (
	"context"
	"fmt"
	"os"

	"spendlog/internal/amqp"
	"spendlog/internal/backend"
	"spendlog/internal/cli"
	"spendlog/internal/config"
	apphttp "spendlog/internal/http"
	applog "spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/services"
)

const amqpConnectAttempts = 3

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		// Logger settings come from config, so fall back to the default one.
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg)
	if err := run(context.Background(), logger, cfg); err != nil {
		logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, logger *applog.Logger, cfg *config.Config) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("init %s backend: %w", cfg.DataBackend, err)
	}

	m := metrics.New()

	// A broker outage must not keep the tracker down; events are simply disabled.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := amqp.NewPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, amqpConnectAttempts, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled", applog.FieldError, err)
		} else {
			publisher = p
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	svc := services.NewExpenseService(res.Store, publisher, m, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close expense service", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(cfg.Addr(), svc, apphttp.Options{
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		Logger:         logger,
		Metrics:        m,
	})

	logger.Info("Starting spendlog server",
		applog.FieldOperation, applog.OpStartup,
		"addr", cfg.Addr(),
		"backend", cfg.DataBackend,
		"events", publisher != nil)

	return cli.Serve(ctx, srv, cfg.ShutdownTimeout, logger)
}
