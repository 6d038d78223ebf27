package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/petshop-checkout/internal/config"
	"github.com/example/petshop-checkout/internal/email"
	"github.com/example/petshop-checkout/internal/infrastructure/kafka"
	"github.com/example/petshop-checkout/internal/logger"
	"github.com/example/petshop-checkout/internal/notification"
	"go.uber.org/zap"
)

// Dedicated group so every invoice is mailed once regardless of other readers
const consumerGroup = "invoice-notifier"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notifier: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.Named("notifier")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailer := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, log)
	handler := notification.NewHandler(mailer, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, consumerGroup, log)
	defer consumer.Close()

	log.Info("consuming",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", consumerGroup),
		zap.String("smtp", fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)),
	)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
