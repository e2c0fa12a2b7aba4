// Package app assembles the analytics runtime shared by the binaries: the
// configured transaction source, the Redis cache, the forecast engine and
// the analytics service on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/cache"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/season"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/angelmondragon/stockcast/pkg/bigquery"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/db"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/angelmondragon/stockcast/pkg/metrics"
	"github.com/angelmondragon/stockcast/pkg/migrate"
	"github.com/angelmondragon/stockcast/pkg/redis"
)

// Options tweak how the runtime is assembled.
type Options struct {
	// Registerer receives the forecast metrics; nil skips registration.
	Registerer prometheus.Registerer
	// SkipRedis builds an uncached runtime even when Redis is configured.
	SkipRedis bool
	// Progress is called after each forecast scope completes.
	Progress func(done, total int)
}

// Runtime holds the connected clients and the services built on them.
type Runtime struct {
	DB        *db.Client
	Redis     *redis.Client
	BigQuery  *bigquery.Client
	Source    transactions.Source
	Tagger    *season.Tagger
	Engine    *forecast.Engine
	Cache     *cache.Cache
	Analytics *analytics.Service

	closers []func() error
}

// Build connects the dependencies selected by cfg. On error every client
// opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts Options) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	rt = &Runtime{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, rt.Close())
			rt = nil
		}
	}()

	if transactions.NeedsDB(cfg.Source) {
		rt.DB, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			return rt, fmt.Errorf("bootstrap database: %w", err)
		}
		rt.closers = append(rt.closers, rt.DB.Close)
		if err = migrate.MaybeAutoRun(ctx, cfg, logg, rt.DB); err != nil {
			return rt, fmt.Errorf("auto migrate: %w", err)
		}
	}

	if transactions.NeedsBigQuery(cfg.Source) {
		rt.BigQuery, err = bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return rt, fmt.Errorf("bootstrap bigquery: %w", err)
		}
		rt.closers = append(rt.closers, rt.BigQuery.Close)
	}

	if cfg.Redis.Enabled() && !opts.SkipRedis {
		rt.Redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return rt, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.closers = append(rt.closers, rt.Redis.Close)
	}

	deps := transactions.SourceDeps{}
	if rt.DB != nil {
		deps.DB = rt.DB.DB()
	}
	if rt.BigQuery != nil {
		deps.BigQuery = rt.BigQuery
	}
	source, closeSource, err := transactions.NewSourceFromConfig(cfg.Source, deps)
	if err != nil {
		return rt, fmt.Errorf("transaction source: %w", err)
	}
	rt.Source = source
	rt.closers = append(rt.closers, closeSource)

	rt.Tagger, err = season.NewTaggerFromConfig(cfg.Festival.Preset, cfg.Festival.Windows)
	if err != nil {
		return rt, fmt.Errorf("festival calendar: %w", err)
	}

	engineOpts := []forecast.Option{forecast.WithLogger(logg)}
	if opts.Registerer != nil {
		engineOpts = append(engineOpts, forecast.WithObserver(metrics.NewForecastMetrics(opts.Registerer)))
	}
	if opts.Progress != nil {
		engineOpts = append(engineOpts, forecast.WithProgress(opts.Progress))
	}
	rt.Engine = forecast.NewEngine(forecast.NewSARIMA(cfg.Forecast.MaxEvaluations), forecast.Config{
		MinModelPoints: cfg.Forecast.MinModelPoints,
		FitTimeout:     cfg.Forecast.FitTimeout,
		Workers:        cfg.Forecast.Workers,
	}, engineOpts...)

	rt.Cache = cache.Disabled()
	if rt.Redis != nil {
		rt.Cache = cache.New(rt.Redis, cfg.Cache.TTL, logg)
	}

	loader, err := transactions.NewLoader(rt.Source, logg)
	if err != nil {
		return rt, err
	}
	rt.Analytics, err = analytics.NewService(analytics.ServiceParams{
		Loader: loader,
		Tagger: rt.Tagger,
		Engine: rt.Engine,
		Cache:  rt.Cache,
		Logger: logg,
	})
	if err != nil {
		return rt, fmt.Errorf("analytics service: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"source": cfg.Source.Kind,
		"cached": rt.Cache.Enabled(),
	})
	logg.Info(ctx, "analytics runtime ready")
	return rt, nil
}

// Close releases every client in reverse order of creation.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i]())
	}
	r.closers = nil
	return errs
}
