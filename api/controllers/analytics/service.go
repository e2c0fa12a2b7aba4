package analytics

import (
	"context"
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
	"github.com/angelmondragon/stockcast/internal/season"
)

// Service is the analytics surface the HTTP handlers depend on.
type Service interface {
	Summary(ctx context.Context) (analytics.Summary, error)
	Products(ctx context.Context) ([]string, error)
	MovementSummary(ctx context.Context, topN int) (aggregate.Summary, error)
	AggregateMonthly(ctx context.Context, product string) ([]aggregate.MonthlyQuantity, error)
	AggregateSeasonal(ctx context.Context, product string, kind aggregate.Kind, from, to time.Time) ([]aggregate.SeasonalQuantity, error)
	ProductTrend(ctx context.Context, product string, from, to time.Time) (aggregate.Trend, error)
	FestivalDrilldown(ctx context.Context, product string, festival season.Festival, from, to time.Time) ([]aggregate.TaggedTransaction, error)
	CustomerProfile(ctx context.Context, customerID string) (analytics.CustomerProfile, error)
	EstimateNextPurchase(ctx context.Context) ([]nextpurchase.Prediction, error)
	ForecastStock(ctx context.Context, req analytics.ForecastRequest) ([]forecast.Result, error)
	Invalidate(ctx context.Context) (int64, error)
}

var _ Service = (*analytics.Service)(nil)
