package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cadosfrit/sensor-events/internal/config"
	"github.com/cadosfrit/sensor-events/internal/handlers"
	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/notifier"
	"github.com/cadosfrit/sensor-events/internal/repository"
	"github.com/cadosfrit/sensor-events/internal/server"
	"github.com/cadosfrit/sensor-events/internal/service"
	"github.com/cadosfrit/sensor-events/internal/statscache"
	"github.com/cadosfrit/sensor-events/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	repo, err := buildRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var batchNotifier service.BatchNotifier
	if cfg.NATS.Enabled {
		n, err := notifier.New(cfg.NATS.URL, "sensor-events", logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer n.Close()
		batchNotifier = n
	}

	var cache service.StatsCache
	if cfg.Redis.Enabled {
		c, err := statscache.New(cfg.Redis.URL, cfg.Redis.TTL, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		cache = c
	}

	chain := validator.Default()
	simple := service.NewSimpleIngestor(repo, chain, logger, batchNotifier, cfg.Ingest.MaxBatchSize)
	partitioned := service.NewPartitionedIngestor(repo, chain, logger, batchNotifier, cfg.Ingest.MaxBatchSize)
	stats := service.NewStatsService(repo, cache, logger)

	handler := handlers.NewHandler(simple, partitioned, stats, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("sensor-events service listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

func buildRepository(cfg *config.Config, logger *logging.Logger) (repository.EventRepository, error) {
	switch cfg.Database.Type {
	case "memory":
		logger.Warn("using in-memory repository; data will not survive restarts")
		return repository.NewMemoryRepository(), nil
	case "postgres":
		connString := cfg.Database.Postgres.ConnString()

		logger.Info("running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize migrations: %w", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return repository.NewPostgresRepository(context.Background(), connString)
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
	}
}
