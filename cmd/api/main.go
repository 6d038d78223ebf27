package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/petshop-checkout/internal/api"
	"github.com/example/petshop-checkout/internal/auth"
	"github.com/example/petshop-checkout/internal/catalog"
	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/example/petshop-checkout/internal/config"
	"github.com/example/petshop-checkout/internal/domain/cart"
	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/email"
	"github.com/example/petshop-checkout/internal/infrastructure/kafka"
	"github.com/example/petshop-checkout/internal/infrastructure/redisstore"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/logger"
	"github.com/example/petshop-checkout/internal/metrics"
	"github.com/example/petshop-checkout/internal/notification"
	"github.com/example/petshop-checkout/internal/projection"
	"github.com/example/petshop-checkout/internal/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.Named("api")

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
	log.Info("connected to postgres")

	readStore := store.NewPostgresReadStore(db)
	projector := projection.NewProjector(readStore, log)

	// Without a broker events are projected and mailed in process
	var (
		bus      store.Publisher
		producer *kafka.Producer
	)
	if cfg.Kafka.Disabled {
		mailer := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, log)
		// mail goes out on its own worker so SMTP never runs inside a checkout
		notifier := store.NewAsync(notification.NewHandler(mailer, log), cfg.SMTP.QueueSize, cfg.SMTP.SendTimeout, log)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := notifier.Close(closeCtx); err != nil {
				log.Warn("mail queue not drained", zap.Error(err))
			}
		}()
		bus = store.FanOut{projector, notifier}
		log.Info("kafka disabled, projecting in process")
	} else {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		bus = producer
		log.Info("publishing to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	bus = store.BestEffort(bus, log)

	eventStore := store.NewPostgresEventStore(db, bus)

	carts := cart.NewService(eventStore, log)
	orders := order.NewService(eventStore, log)
	invoices := invoice.NewService(invoice.NewPostgresRepository(db), invoice.NewNumberGenerator(), bus, log)
	products := catalog.NewBreakerReader(catalog.NewPostgresReader(db), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := checkout.Dependencies{
		Carts:        carts,
		Orders:       orders,
		Invoices:     invoices,
		Metrics:      metrics.NewCheckoutMetrics(reg),
		Logger:       log,
		WriteTimeout: cfg.Checkout.WriteTimeout,
	}
	switch cfg.Checkout.LockBackend {
	case config.LockBackendRedis:
		rdb, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		deps.Locks = redisstore.NewLocker(rdb, cfg.Checkout.LockLease, log)
		deps.Idempotency = redisstore.NewIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL)
		log.Info("checkout locks in redis", zap.String("addr", cfg.Redis.Addr))
	default:
		deps.Locks = checkout.NewKeyedMutex()
		deps.Idempotency = checkout.NewMemoryIdempotencyStore(cfg.Checkout.IdempotencyTTL)
	}
	orchestrator := checkout.New(deps)

	// With kafka the projector service owns the read model
	if cfg.Kafka.Disabled {
		n, err := projector.Replay(ctx, eventStore)
		if err != nil {
			return fmt.Errorf("replay events: %w", err)
		}
		log.Info("read model rebuilt", zap.Int("order_events", n))
	}

	handlers := api.NewHandlers(api.Dependencies{
		Carts:    carts,
		Orders:   orders,
		Invoices: invoices,
		Checkout: orchestrator,
		Query:    query.NewHandler(readStore),
		Catalog:  products,
		Logger:   log,
	})
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		JWTService:     auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Metrics:        metrics.NewServerMetrics(reg, "api"),
		MetricsHandler: metrics.Handler(reg),
		Logger:         log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", server.Addr), zap.String("lock_backend", cfg.Checkout.LockBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}

	return nil
}
