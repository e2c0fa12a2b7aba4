package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ForecastMetrics records forecast outcomes and model fit latency.
type ForecastMetrics struct {
	results     *prometheus.CounterVec
	fitDuration prometheus.Histogram
}

// NewForecastMetrics registers the forecast metrics on the provided registerer.
func NewForecastMetrics(reg prometheus.Registerer) *ForecastMetrics {
	if reg == nil {
		return &ForecastMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_results_total",
		Help: "Forecast results by method and outcome.",
	}, []string{"method", "outcome"})
	fitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_fit_duration_seconds",
		Help:    "Wall-clock duration of seasonal model fits.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	reg.MustRegister(results, fitDuration)
	return &ForecastMetrics{
		results:     results,
		fitDuration: fitDuration,
	}
}

// IncResult counts one forecast result.
func (f *ForecastMetrics) IncResult(method, outcome string) {
	if f == nil || f.results == nil {
		return
	}
	f.results.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObserveFit records how long a model fit took, successful or not.
func (f *ForecastMetrics) ObserveFit(duration time.Duration) {
	if f == nil || f.fitDuration == nil {
		return
	}
	f.fitDuration.Observe(duration.Seconds())
}
