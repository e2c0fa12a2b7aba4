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

	"github.com/angelmondragon/stockcast/internal/app"
	"github.com/angelmondragon/stockcast/internal/cron"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/angelmondragon/stockcast/pkg/metrics"
)

const lockName = "cron-worker:%s"

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	rt, err := app.Build(context.Background(), cfg, logg, app.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap analytics runtime", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logg.Error(context.Background(), "error closing runtime", err)
		}
	}()

	var lock cron.Lock = &cron.LocalLock{}
	if rt.Redis != nil {
		lock, err = cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockSuffix(cfg.App.Env)), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; cron lock is process local and the cache is disabled")
	}

	warm, err := cron.NewWarmJob(cron.WarmJobParams{
		Logger:      logg,
		Analytics:   rt.Analytics,
		ScopeLimit:  cfg.Forecast.DefaultScopeLimit,
		MovementTop: cfg.Movement.TopN,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create warm job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(warm)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    service.Interval().String(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockSuffix(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockName, env)
}
