package forecast

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seasonalTrend(n int) []float64 {
	out := make([]float64, n)
	for t := range out {
		out[t] = 10 + float64(t) + 5*math.Sin(2*math.Pi*float64(t)/12)
	}
	return out
}

func TestSARIMAContinuesDeterministicSeason(t *testing.T) {
	model := NewSARIMA(0)
	values := seasonalTrend(36)

	next, err := model.ForecastNext(context.Background(), values)
	require.NoError(t, err)
	assert.InDelta(t, 46.0, next, 1e-6)
}

func TestSARIMAForecastsShortSeries(t *testing.T) {
	model := NewSARIMA(0)
	values := seasonalTrend(18)

	next, err := model.ForecastNext(context.Background(), values[:17])
	require.NoError(t, err)
	assert.InDelta(t, values[17], next, 1e-6)

	next, err = model.ForecastNext(context.Background(), values)
	require.NoError(t, err)
	assert.InDelta(t, seasonalTrend(19)[18], next, 1e-6)
}

func TestSARIMANoisySeriesFitsWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := seasonalTrend(48)
	for i := range values {
		values[i] += rng.NormFloat64()
	}

	model := NewSARIMA(DefaultMaxEvaluations)
	fit, err := model.Fit(context.Background(), values)
	require.NoError(t, err)
	for _, coef := range []float64{fit.Phi, fit.Theta, fit.SeasonalPhi} {
		assert.Greater(t, coef, -1.0)
		assert.Less(t, coef, 1.0)
	}
	assert.GreaterOrEqual(t, fit.Sigma2, 0.0)

	next, err := model.ForecastNext(context.Background(), values)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(next))
	assert.InDelta(t, 58.0, next, 10)
}

func TestSARIMATypedFailures(t *testing.T) {
	model := NewSARIMA(0)
	assert.Equal(t, 17, model.MinObservations())

	_, err := model.ForecastNext(context.Background(), seasonalTrend(16))
	require.ErrorIs(t, err, ErrInsufficientCycles)

	values := seasonalTrend(30)
	values[5] = math.NaN()
	_, err = model.ForecastNext(context.Background(), values)
	require.ErrorIs(t, err, ErrNumerical)

	values[5] = math.Inf(1)
	_, err = model.ForecastNext(context.Background(), values)
	require.ErrorIs(t, err, ErrNumerical)
}

func TestSARIMAStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSARIMA(0).Fit(ctx, seasonalTrend(40))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDifferenceRemovesTrendAndSeason(t *testing.T) {
	w := difference(seasonalTrend(30))
	require.Len(t, w, 17)
	for _, v := range w {
		assert.InDelta(t, 0, v, 1e-9)
	}
}
