package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tutorbook/internal/api"
	"tutorbook/internal/booking"
	"tutorbook/internal/config"
	"tutorbook/internal/journal"
	"tutorbook/internal/marketplace"
	"tutorbook/internal/metrics"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("TUTORBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	database, err := journal.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid booking timezone")
	}

	client := marketplace.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.BackendTimeout())
	if cfg.Backend.RatePerSecond > 0 {
		client.UseRateLimit(cfg.Backend.RatePerSecond, cfg.Backend.Burst)
	}
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Backend.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	server := api.NewHTTPServer(client, database, api.Options{
		APIKey:            cfg.Server.APIKey,
		Location:          loc,
		StrictManualOrder: cfg.StrictManualOrder(),
		SaveShape:         cfg.SaveShape(),
		DraftTimeout:      cfg.DraftTimeout(),
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the slot catalog
	if err := config.WatchCatalog(ctx, cfg.Availability.CatalogPath, 30*time.Second, func(updated *config.Catalog) {
		server.SetCatalog(updated)
		logger.Info().Int("slots", len(updated.Slots)).Msg("slot catalog loaded")
	}); err != nil {
		logger.Warn().Err(err).Msg("slot catalog unavailable, using built-in grid")
	}

	go startDraftCleanup(ctx, server.Drafts(), &logger)

	if cfg.Backup.Enabled {
		go database.BackupLoop(ctx, cfg.Backup.Path, cfg.BackupInterval(), cfg.BackupRetention(), &logger)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, client, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("backend", cfg.Backend.BaseURL).
		Str("timezone", loc.String()).
		Msg("tutorbook gateway started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("tutorbook gateway stopped")
}

func startDraftCleanup(ctx context.Context, drafts *booking.Store, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := drafts.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired booking drafts removed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *journal.DB, rdb *redis.Client, client *marketplace.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "backend not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
