// Package main provides the entry point for the landslide monitoring
// telemetry ingestion service. It receives push notifications from the
// cloud IoT platform, normalizes and scores them, and persists them for
// the real-time dashboard.
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/alerts"
	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/devices"
	"github.com/kipp7/Landslide-monitor/internal/ingest"
	"github.com/kipp7/Landslide-monitor/internal/observability"
	"github.com/kipp7/Landslide-monitor/internal/pipeline"
	"github.com/kipp7/Landslide-monitor/internal/storage"
	"github.com/kipp7/Landslide-monitor/internal/webhook"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("landslide-ingest %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	webhook.Version = Version
	logger.Info("starting landslide-ingest",
		zap.String("version", Version),
		zap.String("config", *configPath))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres: device mappings and sensor records.
	db, err := storage.Open(cfg.PostgresDSN(), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	mappingStore := devices.NewPostgresStore(db, cfg.Postgres.QueryTimeout)
	recordStore := storage.NewRecordStore(db, cfg.Postgres.QueryTimeout)
	if err := mappingStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure mapping schema", zap.Error(err))
	}
	if err := recordStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure record schema", zap.Error(err))
	}

	resolver := devices.NewResolver(mappingStore, logger)
	if err := resolver.Warm(ctx); err != nil {
		logger.Warn("device mapping cache warm failed, continuing cold", zap.Error(err))
	}

	opts := pipeline.Options{}

	// Redis: latest-reading cache for the dashboard.
	var latestCache *storage.LatestCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv(cfg.Redis.PasswordEnv),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, latest-reading cache disabled", zap.Error(err))
		} else {
			latestCache = storage.NewLatestCache(redisClient, cfg.Redis.LatestTTL, cfg.Redis.Timeout)
			opts.Latest = latestCache
		}
		pingCancel()
	}

	// InfluxDB: time-series mirror for dashboard charts.
	if cfg.Influx.Enabled {
		forwarder := storage.NewInfluxForwarder(
			cfg.Influx.URL, os.Getenv(cfg.Influx.TokenEnv),
			cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.Measurement,
			cfg.Influx.Timeout)
		defer forwarder.Close()
		opts.TimeSeries = forwarder
	}

	// Kafka: anomaly events for downstream alerting.
	if cfg.Kafka.Enabled {
		publisher := alerts.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			cfg.Kafka.BatchTimeout, cfg.Kafka.WriteTimeout, logger)
		defer publisher.Close()
		opts.Publisher = publisher
	}

	pipe := pipeline.New(resolver, recordStore, cfg.Thresholds, cfg.Risk, logger, metrics, opts)

	// Optional direct MQTT ingest for field gateways.
	if cfg.MQTT.Enabled {
		source := ingest.NewMQTTSource(cfg.MQTT, pipe, logger)
		if err := source.Start(ctx); err != nil {
			logger.Warn("mqtt source failed to start", zap.Error(err))
		} else {
			defer source.Stop()
		}
	}

	handler := webhook.NewHandler(pipe, mappingStore, latestReaderOrNil(latestCache), cfg.Server.MaxBodySize, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.Routes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}

// latestReaderOrNil avoids handing the handler a typed-nil interface.
func latestReaderOrNil(c *storage.LatestCache) webhook.LatestReader {
	if c == nil {
		return nil
	}
	return c
}
