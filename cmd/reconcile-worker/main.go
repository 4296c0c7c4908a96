package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/internal/reconcile"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/db"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/metrics"
	"github.com/sevakart/sevakart-backend/pkg/migrate"
	"github.com/sevakart/sevakart-backend/pkg/redis"
)

const lockKeyFormat = "sk:reconcile-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	job, err := reconcile.NewJob(reconcile.JobParams{
		Reader:    reconcile.NewRepository(dbClient.DB()),
		Ledger:    ledgerSvc,
		Metrics:   metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		BatchSize: cfg.Reconcile.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Reconcile.Interval.String(),
	})
	logg.Info(ctx, "starting reconcile worker")

	go serveMetrics(ctx, cfg.App.Port, logg)

	if err := run(ctx, cfg, redisClient, job, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}

type locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// run executes the job on every tick, skipping ticks when another instance
// holds the lock.
func run(ctx context.Context, cfg *config.Config, lock locker, job *reconcile.Job, logg *logger.Logger) error {
	interval := cfg.Reconcile.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	lockKey := fmt.Sprintf(lockKeyFormat, envOrLocal(cfg.App.Env))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, lock, lockKey, interval, job, logg)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce(ctx, lock, lockKey, interval, job, logg)
		}
	}
}

func runOnce(ctx context.Context, lock locker, key string, ttl time.Duration, job *reconcile.Job, logg *logger.Logger) {
	acquired, err := lock.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl)
	if err != nil {
		logg.Error(ctx, "acquiring reconcile lock", err)
		return
	}
	if !acquired {
		logg.Info(ctx, "reconcile lock held elsewhere, skipping run")
		return
	}
	if err := job.Run(ctx); err != nil {
		logg.Error(ctx, "reconcile run failed", err)
	}
}

func serveMetrics(ctx context.Context, port string, logg *logger.Logger) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
