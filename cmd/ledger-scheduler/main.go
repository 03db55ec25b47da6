package main

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/ai"
	"finledger/internal/amqp"
	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting ledger-scheduler")
	cfg := cli.LoadAndValidateConfig(logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	backend := cli.InitStore(startupCtx, logger, cfg)
	dispatcher, closeDispatcher := initDispatcher(logger, cfg)

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGemini(startupCtx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Gemini unavailable, reports go out without insights", log.FieldError, err)
		} else {
			gen = g
		}
	}

	alerts := services.NewAlertProcessor(backend.Store, dispatcher, services.AlertProcessorConfig{
		Interval:  cfg.AlertInterval,
		Threshold: decimal.NewFromInt(int64(cfg.AlertThreshold)),
	})
	reports := services.NewReportProcessor(backend.Store, dispatcher, gen, cfg.ReportCheckInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := alerts.Stop(stopCtx); err != nil {
			logger.Error("Failed to stop alert processor", log.FieldError, err)
		}
		if err := reports.Stop(stopCtx); err != nil {
			logger.Error("Failed to stop report processor", log.FieldError, err)
		}
		closeDispatcher()
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Error("Failed to close ledger store", log.FieldError, err)
			}
		}
	})

	if err := alerts.Start(ctx); err != nil {
		logger.Error("Failed to start alert processor", log.FieldError, err)
		os.Exit(1)
	}
	if err := reports.Start(ctx); err != nil {
		logger.Error("Failed to start report processor", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Scheduler running",
		"alert_interval", cfg.AlertInterval,
		"alert_threshold", cfg.AlertThreshold,
		"report_interval", cfg.ReportCheckInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Scheduler stopped gracefully")
}

// initDispatcher queues mail on RabbitMQ for cmd/mail-worker, or sends it in
// process when no broker is configured.
func initDispatcher(logger *log.Logger, cfg *config.Config) (notify.Dispatcher, func()) {
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Notifications queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Error("Failed to load mail templates", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("No RABBITMQ_URL, notifications sent in process")
	return notify.NewDirect(renderer, cli.MailSender(logger, cfg)), func() {}
}
