package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/petshop-checkout/internal/config"
	"github.com/example/petshop-checkout/internal/infrastructure/kafka"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/logger"
	"github.com/example/petshop-checkout/internal/projection"
	"go.uber.org/zap"
)

const consumerGroup = "projector"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "projector: %v\n", err)
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
	log = log.Named("projector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := store.RunMigrations(db, cfg.Postgres.MigrationsPath); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	projector := projection.NewProjector(store.NewPostgresReadStore(db), log)

	// Rebuild first so the read model survives a lost topic
	n, err := projector.Replay(ctx, store.NewPostgresEventStore(db, nil))
	if err != nil {
		return fmt.Errorf("replay events: %w", err)
	}
	log.Info("read model rebuilt", zap.Int("order_events", n))

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, consumerGroup, log)
	defer consumer.Close()

	log.Info("consuming",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", consumerGroup),
	)
	if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
