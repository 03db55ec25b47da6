package main

import (
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting mail-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("RABBITMQ_URL is required for the mail worker")
		os.Exit(1)
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Error("Failed to load mail templates", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewMailWorker(renderer, cli.MailSender(logger, cfg))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	})

	logger.Info("Consuming email jobs", "queue", cfg.AMQPQueue)
	if err := w.Run(ctx, client); err != nil {
		logger.Error("Mail worker stopped", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Mail worker stopped gracefully")
}
