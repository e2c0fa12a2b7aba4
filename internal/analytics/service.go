// Package analytics is the entry point the API, workers and CLI use to read
// transactions and run the aggregation, next-purchase and forecast core.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/cache"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
	"github.com/angelmondragon/stockcast/internal/season"
	"github.com/angelmondragon/stockcast/internal/transactions"
	pkgerrors "github.com/angelmondragon/stockcast/pkg/errors"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

type loader interface {
	Load(ctx context.Context) (*transactions.Dataset, error)
}

// ServiceParams wires the façade.
type ServiceParams struct {
	Loader loader
	Tagger *season.Tagger
	Engine *forecast.Engine
	Cache  *cache.Cache
	Logger *logger.Logger
}

// Service answers analytics questions over the current transaction set.
// An empty dataset yields empty results rather than errors.
type Service struct {
	loader loader
	tagger *season.Tagger
	engine *forecast.Engine
	cache  *cache.Cache
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Loader == nil {
		return nil, fmt.Errorf("transaction loader required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("forecast engine required")
	}
	tagger := params.Tagger
	if tagger == nil {
		tagger = season.MustDefaultTagger()
	}
	c := params.Cache
	if c == nil {
		c = cache.Disabled()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		loader: params.Loader,
		tagger: tagger,
		engine: params.Engine,
		cache:  c,
		logg:   logg,
	}, nil
}

// Summary describes the loaded dataset.
type Summary struct {
	Rows      int        `json:"rows"`
	Dropped   int        `json:"dropped"`
	Customers int        `json:"customers"`
	Products  int        `json:"products"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
}

// CustomerProfile gathers the per-customer views.
type CustomerProfile struct {
	CustomerID    string                      `json:"customer_id"`
	Purchases     int                         `json:"purchases"`
	Frequency     []aggregate.ProductCount    `json:"frequency"`
	Intervals     []aggregate.ProductInterval `json:"intervals"`
	Heatmap       aggregate.Heatmap           `json:"heatmap"`
	NextPurchases []nextpurchase.Prediction   `json:"next_purchases"`
}

// ForecastRequest selects the customers to forecast. ScopeLimit <= 0 means
// all customers.
type ForecastRequest struct {
	ScopeLimit int
	Customers  []string
}

// Transactions loads and cleans the current transaction set.
func (s *Service) Transactions(ctx context.Context) (*transactions.Dataset, error) {
	return cache.Fetch(ctx, s.cache, []string{"transactions"}, s.load)
}

func (s *Service) load(ctx context.Context) (*transactions.Dataset, error) {
	ds, err := s.loader.Load(ctx)
	if errors.Is(err, transactions.ErrEmptyDataset) {
		s.logg.Warn(ctx, "transaction dataset is empty")
		if ds == nil {
			ds = &transactions.Dataset{}
		}
		return ds, nil
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	ds, err := s.Transactions(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		Rows:      len(ds.Transactions),
		Dropped:   ds.Dropped,
		Customers: len(ds.Customers()),
		Products:  len(ds.Products()),
	}
	if from, to, ok := ds.DateRange(); ok {
		out.From, out.To = &from, &to
	}
	return out, nil
}

func (s *Service) ClassifyMovement(ctx context.Context) ([]aggregate.ProductMovement, error) {
	return cache.Fetch(ctx, s.cache, []string{"movement"}, func(ctx context.Context) ([]aggregate.ProductMovement, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return nil, err
		}
		return aggregate.ClassifyMovement(ds.Transactions), nil
	})
}

// MovementSummary classifies every product and lists the topN of each
// category. topN <= 0 lists all of them.
func (s *Service) MovementSummary(ctx context.Context, topN int) (aggregate.Summary, error) {
	if topN < 0 {
		topN = 0
	}
	return cache.Fetch(ctx, s.cache, []string{"movement-summary", strconv.Itoa(topN)}, func(ctx context.Context) (aggregate.Summary, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return aggregate.Summary{}, err
		}
		return aggregate.MovementSummary(ds.Transactions, topN), nil
	})
}

// AggregateMonthly returns monthly totals for product, or for every product
// when product is empty.
func (s *Service) AggregateMonthly(ctx context.Context, product string) ([]aggregate.MonthlyQuantity, error) {
	return cache.Fetch(ctx, s.cache, []string{"monthly", keyPart(product)}, func(ctx context.Context) ([]aggregate.MonthlyQuantity, error) {
		txs, err := s.productRows(ctx, product)
		if err != nil {
			return nil, err
		}
		return aggregate.MonthlyByProduct(txs), nil
	})
}

// AggregateSeasonal returns seasonal totals for product within [from, to].
func (s *Service) AggregateSeasonal(ctx context.Context, product string, kind aggregate.Kind, from, to time.Time) ([]aggregate.SeasonalQuantity, error) {
	parts := []string{"seasonal", string(kind), keyPart(product), dateKey(from), dateKey(to)}
	return cache.Fetch(ctx, s.cache, parts, func(ctx context.Context) ([]aggregate.SeasonalQuantity, error) {
		txs, err := s.productRows(ctx, product)
		if err != nil {
			return nil, err
		}
		out, err := aggregate.SeasonalByProduct(aggregate.FilterRange(txs, from, to), s.tagger, kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid season kind")
		}
		return out, nil
	})
}

func (s *Service) EstimateNextPurchase(ctx context.Context) ([]nextpurchase.Prediction, error) {
	return cache.Fetch(ctx, s.cache, []string{"next-purchase"}, func(ctx context.Context) ([]nextpurchase.Prediction, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return nil, err
		}
		return nextpurchase.Estimate(ds.Transactions), nil
	})
}

func (s *Service) ForecastStock(ctx context.Context, req ForecastRequest) ([]forecast.Result, error) {
	parts := []string{"forecast", strconv.Itoa(req.ScopeLimit), keyPart(strings.Join(req.Customers, ","))}
	return cache.Fetch(ctx, s.cache, parts, func(ctx context.Context) ([]forecast.Result, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return nil, err
		}
		results, err := s.engine.Run(ctx, ds.Transactions, forecast.Request{
			ScopeLimit: req.ScopeLimit,
			Customers:  req.Customers,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "forecast run interrupted")
		}
		return results, nil
	})
}

func (s *Service) CustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	return cache.Fetch(ctx, s.cache, []string{"customer", customerID}, func(ctx context.Context) (CustomerProfile, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return CustomerProfile{}, err
		}
		rows := transactions.ForCustomer(ds.Transactions, customerID)
		if len(rows) == 0 && !ds.Empty() {
			return CustomerProfile{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %q has no transactions", customerID)
		}
		return CustomerProfile{
			CustomerID:    customerID,
			Purchases:     len(rows),
			Frequency:     aggregate.PurchaseFrequency(rows, customerID),
			Intervals:     aggregate.AverageIntervals(rows, customerID),
			Heatmap:       aggregate.MonthlyHeatmap(rows, customerID),
			NextPurchases: nextpurchase.Estimate(rows),
		}, nil
	})
}

func (s *Service) ProductTrend(ctx context.Context, product string, from, to time.Time) (aggregate.Trend, error) {
	parts := []string{"trend", product, dateKey(from), dateKey(to)}
	return cache.Fetch(ctx, s.cache, parts, func(ctx context.Context) (aggregate.Trend, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return aggregate.Trend{}, err
		}
		if err := requireProduct(ds, product); err != nil {
			return aggregate.Trend{}, err
		}
		return aggregate.ProductTrend(ds.Transactions, s.tagger, product, from, to), nil
	})
}

// FestivalDrilldown lists the product's purchases that fall in festival,
// restricted to [from, to].
func (s *Service) FestivalDrilldown(ctx context.Context, product string, festival season.Festival, from, to time.Time) ([]aggregate.TaggedTransaction, error) {
	parts := []string{"festival", keyPart(product), string(festival), dateKey(from), dateKey(to)}
	return cache.Fetch(ctx, s.cache, parts, func(ctx context.Context) ([]aggregate.TaggedTransaction, error) {
		ds, err := s.Transactions(ctx)
		if err != nil {
			return nil, err
		}
		if product != "" {
			if err := requireProduct(ds, product); err != nil {
				return nil, err
			}
		}
		rows := aggregate.FilterRange(ds.Transactions, from, to)
		return aggregate.FestivalDrilldown(rows, s.tagger, product, festival), nil
	})
}

// Invalidate drops every cached result and returns the new freshness token.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	token, err := s.cache.Invalidate(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate cache")
	}
	s.logg.Info(s.logg.WithField(ctx, "freshness_token", token), "analytics cache invalidated")
	return token, nil
}

// Products lists the distinct products, sorted.
func (s *Service) Products(ctx context.Context) ([]string, error) {
	ds, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	products := ds.Products()
	sort.Strings(products)
	return products, nil
}

func (s *Service) productRows(ctx context.Context, product string) ([]transactions.Transaction, error) {
	ds, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	if product == "" {
		return ds.Transactions, nil
	}
	if err := requireProduct(ds, product); err != nil {
		return nil, err
	}
	return aggregate.ForProduct(ds.Transactions, product), nil
}

func requireProduct(ds *transactions.Dataset, product string) error {
	if ds.Empty() {
		return nil
	}
	for _, tx := range ds.Transactions {
		if tx.Product == product {
			return nil
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %q has no transactions", product)
}

func keyPart(value string) string {
	if value == "" {
		return "all"
	}
	return value
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.UTC().Format(time.DateOnly)
}
