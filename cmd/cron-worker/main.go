package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	gatewayMetrics := metrics.NewGatewayMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	gateway, err := bootstrap.Gateway(ctx, cfg, logg, gatewayMetrics)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}
	services, err := bootstrap.Build(cfg, logg, dbClient, redisClient, gateway, gatewayMetrics)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient, services)
	if err != nil {
		logg.Error(ctx, "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Checkout.CronInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(jobs.Jobs()),
	})
	metrics.Serve(ctx, logg, cfg.App.Port, registry)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services bootstrap.Services) (*cron.Registry, error) {
	reconcile, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:     logg,
		Candidates: services.Payments,
		Reconciler: services.Checkout,
		After:      cfg.Checkout.ReconcileAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("payment reconcile job: %w", err)
	}
	abandon, err := cron.NewOrderAbandonJob(cron.OrderAbandonJobParams{
		Logger:  logg,
		Orders:  services.Orders,
		Expirer: services.Checkout,
		TTL:     cfg.Checkout.OrderTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("order abandon job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Retention:   cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{reconcile, abandon, retention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// serveMetrics exposes the worker's registry for scraping. A failure here is
// logged and does not stop the jobs.
func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("%s:%s", lockName, env)
}
