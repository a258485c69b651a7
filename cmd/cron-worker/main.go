package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhanibekov/libris-backend/internal/cron"
	"github.com/zhanibekov/libris-backend/internal/fees"
	"github.com/zhanibekov/libris-backend/internal/loans"
	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/db"
	"github.com/zhanibekov/libris-backend/pkg/logger"
	"github.com/zhanibekov/libris-backend/pkg/metrics"
	"github.com/zhanibekov/libris-backend/pkg/migrate"
	"github.com/zhanibekov/libris-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	if err := run(logg); err != nil {
		logg.Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildService wires the job registry: every scheduled job the worker runs
// is registered here.
func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	loansService, err := loans.NewService(loans.NewRepository(dbClient.DB()), dbClient, cfg.Library)
	if err != nil {
		return nil, fmt.Errorf("loans service: %w", err)
	}
	feesService, err := fees.NewService(fees.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("fees service: %w", err)
	}

	overdueFeeJob, err := cron.NewOverdueFeeJob(cron.OverdueFeeJobParams{
		Logger:  logg,
		Loans:   loansService,
		Fees:    feesService,
		Library: cfg.Library,
	})
	if err != nil {
		return nil, fmt.Errorf("overdue fee job: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(overdueFeeJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("libris:cron-worker:lock:%s", env)
}
