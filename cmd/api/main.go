package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockcast/api/controllers"
	"github.com/angelmondragon/stockcast/api/routes"
	"github.com/angelmondragon/stockcast/internal/app"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/env"
	"github.com/angelmondragon/stockcast/pkg/instance"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	// typed nils must not reach the readiness probe
	var deps []controllers.Dependency
	if rt.DB != nil {
		deps = append(deps, controllers.Dependency{Name: "database", Pinger: rt.DB})
	}
	if rt.Redis != nil {
		deps = append(deps, controllers.Dependency{Name: "redis", Pinger: rt.Redis})
	}
	if rt.BigQuery != nil {
		deps = append(deps, controllers.Dependency{Name: "bigquery", Pinger: rt.BigQuery})
	}

	addr := ":" + env.ListenPort(cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, rt.Analytics, prometheus.DefaultGatherer, deps...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
