package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-scheduler/internal/api"
	"github.com/ignite/warmup-scheduler/internal/capacity"
	"github.com/ignite/warmup-scheduler/internal/config"
	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/monitoring"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/distlock"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
	"github.com/ignite/warmup-scheduler/internal/repository/memory"
	"github.com/ignite/warmup-scheduler/internal/repository/postgres"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("[Scheduler] exited with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clk, err := clock.NewSystem(cfg.Scheduler.Timezone)
	if err != nil {
		return err
	}
	logger.Info("[Scheduler] starting", "timezone", clk.Location.String(), "profile", cfg.Scheduler.DefaultProfile)

	// State store: Redis when configured, otherwise the local JSON file.
	var (
		kv          kvstore.Store
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		rs, err := kvstore.NewRedisStoreFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		kv, redisClient = rs, rs.Client()
		logger.Info("[Scheduler] using redis state store")
	} else {
		fs, err := kvstore.NewFileStore(cfg.Storage.LocalPath, clk)
		if err != nil {
			return fmt.Errorf("opening local state store: %w", err)
		}
		kv = fs
		logger.Warn("[Scheduler] REDIS_URL not set, using local state store; run a single instance only",
			"path", cfg.Storage.LocalPath)
	}

	// Identity registry: PostgreSQL when configured, otherwise the config file.
	var (
		registry sending.Registry
		db       *sql.DB
	)
	if cfg.Database.URL != "" {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := postgres.NewIdentityRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring identity schema: %w", err)
		}
		registry = repo
		logger.Info("[Scheduler] using postgres identity registry")
	} else {
		registry = memory.NewIdentityRegistry(cfg.IdentityList(clk.Now()))
		logger.Info("[Scheduler] using configured identities", "count", len(cfg.Identities))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	warmups := warmup.NewStore(kv, clk,
		warmup.WithLocker(distlock.NewLocker(redisClient, cfg.Scheduler.LockTTL()), cfg.Scheduler.LockWait()),
		warmup.WithDefaultProfile(domain.Profile(cfg.Scheduler.DefaultProfile)),
		warmup.WithWeekendFactor(cfg.Scheduler.WeekendFactor),
	)
	tracker := capacity.NewTracker(kv, clk)
	svc := sending.NewService(registry, tracker, warmups, clk, cfg.Scheduler.Concurrency, sending.WithMetrics(metrics))

	sweeper := warmup.NewSweeper(warmups, cfg.Scheduler.SweepSchedule, clk.Location)
	sweeper.OnSweep(metrics.ObserveSweep)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	router := api.SetupRoutes(api.NewHandlers(svc), api.RouteOptions{
		Health:         api.NewHealthChecker(db, redisClient),
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	server := api.NewServer(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Scheduler] listening", "addr", server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("[Scheduler] shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("[Scheduler] stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}
