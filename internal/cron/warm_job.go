package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"go.uber.org/multierr"
)

const warmJobName = "analytics-cache-warm"

type analyticsWarmer interface {
	MovementSummary(ctx context.Context, topN int) (aggregate.Summary, error)
	ClassifyMovement(ctx context.Context) ([]aggregate.ProductMovement, error)
	EstimateNextPurchase(ctx context.Context) ([]nextpurchase.Prediction, error)
	ForecastStock(ctx context.Context, req analytics.ForecastRequest) ([]forecast.Result, error)
}

// WarmJobParams configure the cache warm job.
type WarmJobParams struct {
	Logger      *logger.Logger
	Analytics   analyticsWarmer
	ScopeLimit  int
	MovementTop int
}

// WarmJob precomputes the dashboard views so API reads hit the cache.
type WarmJob struct {
	logg        *logger.Logger
	analytics   analyticsWarmer
	scopeLimit  int
	movementTop int
}

func NewWarmJob(params WarmJobParams) (*WarmJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Analytics == nil {
		return nil, errors.New("analytics service required")
	}
	return &WarmJob{
		logg:        params.Logger,
		analytics:   params.Analytics,
		scopeLimit:  params.ScopeLimit,
		movementTop: params.MovementTop,
	}, nil
}

func (j *WarmJob) Name() string { return warmJobName }

// Run executes every step; a failing step does not stop the others.
func (j *WarmJob) Run(ctx context.Context) error {
	var errs error

	movement, err := j.analytics.ClassifyMovement(ctx)
	errs = multierr.Append(errs, wrapStep("movement", err))
	_, err = j.analytics.MovementSummary(ctx, j.movementTop)
	errs = multierr.Append(errs, wrapStep("movement summary", err))

	predictions, err := j.analytics.EstimateNextPurchase(ctx)
	errs = multierr.Append(errs, wrapStep("next purchase", err))

	results, err := j.analytics.ForecastStock(ctx, analytics.ForecastRequest{ScopeLimit: j.scopeLimit})
	errs = multierr.Append(errs, wrapStep("forecast", err))

	var fallbacks int
	for _, r := range results {
		if r.Method == forecast.MethodFallbackMean {
			fallbacks++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"products":    len(movement),
		"predictions": len(predictions),
		"forecasts":   len(results),
		"fallbacks":   fallbacks,
		"failures":    len(multierr.Errors(errs)),
	}), "analytics cache warmed")
	return errs
}

func wrapStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}
