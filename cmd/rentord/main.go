// Package main is the entry point for the rentord orchestration server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/config"
	"github.com/motorent/rentord/internal/eventbus"
	"github.com/motorent/rentord/internal/handlers"
	"github.com/motorent/rentord/internal/observability"
	"github.com/motorent/rentord/internal/orchestration"
	"github.com/motorent/rentord/internal/repository"
	"github.com/motorent/rentord/internal/saga"
	"github.com/motorent/rentord/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "rentord", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Initialize the persistence store.
	store, storeCloser, err := buildStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	// Step 5: Initialize the idempotency store (optional).
	idempotencyStore, idempotencyCloser := buildIdempotencyStore(cfg, logger)

	// Step 6: Build the event bus and saga executor.
	bus := eventbus.NewEnhancedBus(logger,
		eventbus.WithMaxRetries(cfg.Bus.MaxRetries),
		eventbus.WithBackoffBase(cfg.Bus.BackoffBase),
		eventbus.WithHistoryLimit(cfg.Bus.HistoryLimit),
		eventbus.WithMetrics(metrics),
	)
	executor := saga.NewExecutor(bus, logger, metrics)

	// Step 7: Build orchestrators.
	contracts := orchestration.NewContractOrchestrator(store, executor, bus, logger)
	invoices := orchestration.NewInvoiceOrchestrator(store, executor, bus, logger)

	// Step 8: Build and register event handlers.
	ledger := handlers.NewMemoryLedger()
	accounting := handlers.NewAccountingHandler(ledger, bus, logger, metrics)
	analytics := handlers.NewAnalyticsHandler(logger, cfg.Analytics.MaxSamples)
	notifications := handlers.NewNotificationHandler(logger, metrics, cfg.Notifications.QueueLimit)
	handlers.Register(bus,
		accounting.Handlers(),
		analytics.Handlers(),
		notifications.Handlers(),
	)

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{Store: store}
	if idempotencyStore != nil {
		readinessChecks.IdempotencyStore = idempotencyStore
	}

	api := &transport.API{
		Contracts:      contracts,
		Invoices:       invoices,
		Bus:            bus,
		Analytics:      analytics,
		Notifications:  notifications,
		Idempotency:    idempotencyStore,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Logger:         logger,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:  cfg,
		API:     api,
		Logger:  logger,
		Metrics: metrics,
		Checks:  readinessChecks,
	})

	handler := observability.TracingMiddleware(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Let in-flight event deliveries finish before closing stores.
	bus.Drain()

	if storeCloser != nil {
		storeCloser()
	}
	if idempotencyCloser != nil {
		idempotencyCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStore creates the persistence store. Postgres when enabled, falling
// back to the in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.Store, func(), error) {
	if !cfg.Enabled {
		logger.Info("using in-memory store")
		return repository.NewMemoryStore(), nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("store: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("store: ping: %w", err)
	}

	logger.Info("using postgres store")
	return repository.NewPgStore(pool), pool.Close, nil
}

// buildIdempotencyStore creates the idempotency store based on config.
func buildIdempotencyStore(cfg *config.Config, logger *zap.Logger) (orchestration.IdempotencyStore, func()) {
	if !cfg.Idempotency.Enabled {
		return nil, nil
	}

	switch cfg.Idempotency.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("using redis idempotency store", zap.String("addr", cfg.Redis.Addr))
		return orchestration.NewRedisIdempotencyStore(client), func() { client.Close() }
	default:
		logger.Info("using in-memory idempotency store")
		return orchestration.NewMemoryIdempotencyStore(), nil
	}
}
