// Package forecast produces one-step-ahead monthly quantity forecasts per
// (customer, product) scope, falling back to the series mean when the
// seasonal model cannot be used.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type Method string

const (
	MethodModel        Method = "model"
	MethodFallbackMean Method = "fallback_mean"
)

type Outcome string

const (
	OutcomeModelSucceeded   Outcome = "model_succeeded"
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeModelFailed      Outcome = "model_failed"
)

const (
	LabelModel            = "model forecast"
	LabelEstimatedAverage = "estimated average"
	LabelAverage          = "average"
)

const (
	DefaultMinModelPoints = 4
	LegacyMinModelPoints  = 3
	DefaultFitTimeout     = 5 * time.Second
	DefaultWorkers        = 4
)

// ErrFitTimeout marks a fit abandoned after the configured timeout.
var ErrFitTimeout = errors.New("forecast: model fit timed out")

// Fitter produces a one-step-ahead forecast from an ordered series.
type Fitter interface {
	ForecastNext(ctx context.Context, values []float64) (float64, error)
}

// Observer receives per-result and per-fit measurements.
type Observer interface {
	IncResult(method, outcome string)
	ObserveFit(duration time.Duration)
}

// Result is the forecast for one scope.
type Result struct {
	CustomerID    string  `json:"customer_id"`
	Product       string  `json:"product"`
	PointForecast float64 `json:"point_forecast"`
	Method        Method  `json:"method"`
	Outcome       Outcome `json:"outcome"`
	Label         string  `json:"label"`
	Observations  int     `json:"observations"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// Scope is one (customer, product) series.
type Scope struct {
	CustomerID string
	Product    string
	Series     Series
}

// Request bounds a forecast run. ScopeLimit <= 0 means every customer.
// Customers, when set, replaces first-appearance selection.
type Request struct {
	ScopeLimit int
	Customers  []string
}

type Config struct {
	MinModelPoints int
	FitTimeout     time.Duration
	Workers        int
}

type Engine struct {
	fitter   Fitter
	cfg      Config
	observer Observer
	logg     *logger.Logger
	progress func(done, total int)
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logg = l }
}

// WithProgress registers a callback invoked after each scope completes. It
// may be called from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

func NewEngine(fitter Fitter, cfg Config, opts ...Option) *Engine {
	if cfg.MinModelPoints <= 0 {
		cfg.MinModelPoints = DefaultMinModelPoints
	}
	if cfg.FitTimeout <= 0 {
		cfg.FitTimeout = DefaultFitTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	e := &Engine{fitter: fitter, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scopes groups transactions into (customer, product) series. Customers are
// taken in first-appearance order and limited by req; products within a
// customer are in first-appearance order too.
func Scopes(txs []transactions.Transaction, req Request) []Scope {
	ds := transactions.Dataset{Transactions: txs}
	customers := ds.Customers()
	if len(req.Customers) > 0 {
		customers = dedupe(req.Customers)
	}
	if req.ScopeLimit > 0 && len(customers) > req.ScopeLimit {
		customers = customers[:req.ScopeLimit]
	}

	scopes := make([]Scope, 0)
	for _, customer := range customers {
		rows := transactions.ForCustomer(txs, customer)
		products := (&transactions.Dataset{Transactions: rows}).Products()
		for _, product := range products {
			scopes = append(scopes, Scope{
				CustomerID: customer,
				Product:    product,
				Series:     BuildSeries(aggregate.ForProduct(rows, product)),
			})
		}
	}
	return scopes
}

// Run forecasts every selected scope on a bounded worker pool. A failing
// scope never affects another; the only error returned is ctx cancellation.
func (e *Engine) Run(ctx context.Context, txs []transactions.Transaction, req Request) ([]Result, error) {
	scopes := Scopes(txs, req)
	results := make([]Result, len(scopes))
	if len(scopes) == 0 {
		return results, nil
	}

	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, scope := range scopes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ForecastScope(gctx, scope)
			n := completed.Add(1)
			if e.progress != nil {
				e.progress(int(n), len(scopes))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForecastScope runs the state machine for a single scope.
func (e *Engine) ForecastScope(ctx context.Context, scope Scope) Result {
	res := Result{
		CustomerID:   scope.CustomerID,
		Product:      scope.Product,
		Observations: len(scope.Series),
	}

	if len(scope.Series) < e.cfg.MinModelPoints {
		res.PointForecast = scope.Series.Mean()
		res.Method = MethodFallbackMean
		res.Outcome = OutcomeInsufficientData
		res.Label = LabelEstimatedAverage
		e.record(res)
		return res
	}

	value, err := e.fit(ctx, scope.Series.Values())
	if err != nil {
		res.PointForecast = scope.Series.Mean()
		res.Method = MethodFallbackMean
		res.Outcome = OutcomeModelFailed
		res.Label = LabelAverage
		res.FailureReason = err.Error()
		if e.logg != nil {
			logCtx := e.logg.WithProduct(e.logg.WithCustomerID(ctx, scope.CustomerID), scope.Product)
			e.logg.Debug(e.logg.WithField(logCtx, "reason", err.Error()), "model fit failed; using fallback mean")
		}
		e.record(res)
		return res
	}

	res.PointForecast = value
	res.Method = MethodModel
	res.Outcome = OutcomeModelSucceeded
	res.Label = LabelModel
	e.record(res)
	return res
}

type fitResult struct {
	value float64
	err   error
}

// fit runs the fitter under the configured timeout. A fit that overruns is
// abandoned and finishes in the background.
func (e *Engine) fit(ctx context.Context, values []float64) (float64, error) {
	fitCtx, cancel := context.WithTimeout(ctx, e.cfg.FitTimeout)
	defer cancel()

	start := time.Now()
	out := make(chan fitResult, 1)
	go func() {
		out <- e.safeFit(fitCtx, values)
	}()

	select {
	case r := <-out:
		e.observeFit(time.Since(start))
		return r.value, r.err
	case <-fitCtx.Done():
		e.observeFit(time.Since(start))
		if errors.Is(fitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, fmt.Errorf("%w after %s", ErrFitTimeout, e.cfg.FitTimeout)
		}
		return 0, fitCtx.Err()
	}
}

func (e *Engine) safeFit(ctx context.Context, values []float64) (r fitResult) {
	defer func() {
		if p := recover(); p != nil {
			r = fitResult{err: fmt.Errorf("%w: panic: %v", ErrNumerical, p)}
		}
	}()
	v, err := e.fitter.ForecastNext(ctx, values)
	return fitResult{value: v, err: err}
}

func (e *Engine) record(res Result) {
	if e.observer != nil {
		e.observer.IncResult(string(res.Method), string(res.Outcome))
	}
}

func (e *Engine) observeFit(d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveFit(d)
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
