package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

var (
	ErrInsufficientCycles = errors.New("forecast: series too short for the seasonal model")
	ErrNotConverged       = errors.New("forecast: model fit did not converge")
	ErrNumerical          = errors.New("forecast: numerical failure in model fit")
)

const (
	seasonalPeriod = 12
	// phi, theta and the seasonal phi.
	sarimaParams = 3

	DefaultMaxEvaluations = 4000
)

// SARIMA is a SARIMA(1,1,1)(1,1,0,12) model fitted by conditional sum of
// squares. The differenced series w follows
//
//	(1 - phi B)(1 - Phi B^12) w_t = (1 + theta B) e_t
//
// with pre-sample values of w and e taken as zero.
type SARIMA struct {
	maxEvaluations int
}

// Fit holds the estimated coefficients.
type Fit struct {
	Phi         float64
	Theta       float64
	SeasonalPhi float64
	Sigma2      float64
	Evaluations int
}

func NewSARIMA(maxEvaluations int) *SARIMA {
	if maxEvaluations <= 0 {
		maxEvaluations = DefaultMaxEvaluations
	}
	return &SARIMA{maxEvaluations: maxEvaluations}
}

// MinObservations is the shortest series the model accepts: the 13 values
// consumed by differencing, then more residuals than parameters.
func (m *SARIMA) MinObservations() int {
	return 1 + seasonalPeriod + sarimaParams + 1
}

// ForecastNext fits the model and returns the one-step-ahead forecast on the
// original scale.
func (m *SARIMA) ForecastNext(ctx context.Context, values []float64) (float64, error) {
	fit, err := m.Fit(ctx, values)
	if err != nil {
		return 0, err
	}
	next := fit.forecast(values)
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, fmt.Errorf("%w: forecast is not finite", ErrNumerical)
	}
	return next, nil
}

// Fit estimates the coefficients. The objective stops doing work once ctx is
// done, so an abandoned fit ends quickly.
func (m *SARIMA) Fit(ctx context.Context, values []float64) (*Fit, error) {
	if len(values) < m.MinObservations() {
		return nil, fmt.Errorf("%w: have %d observations, need %d", ErrInsufficientCycles, len(values), m.MinObservations())
	}
	if floats.HasNaN(values) || hasInf(values) {
		return nil, fmt.Errorf("%w: series contains non-finite values", ErrNumerical)
	}

	w := difference(values)
	residuals := make([]float64, len(w))
	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		phi, theta, sphi := constrain(x)
		css(w, phi, theta, sphi, residuals)
		return floats.Dot(residuals, residuals) / float64(len(w))
	}

	settings := &optimize.Settings{
		FuncEvaluations: m.maxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: objective}, make([]float64, sarimaParams), settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	switch result.Status {
	case optimize.Failure, optimize.IterationLimit, optimize.RuntimeLimit, optimize.FunctionEvaluationLimit:
		return nil, fmt.Errorf("%w: %s after %d evaluations", ErrNotConverged, result.Status, result.FuncEvaluations)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, fmt.Errorf("%w: objective is not finite", ErrNumerical)
	}

	phi, theta, sphi := constrain(result.X)
	return &Fit{
		Phi:         phi,
		Theta:       theta,
		SeasonalPhi: sphi,
		Sigma2:      result.F,
		Evaluations: result.FuncEvaluations,
	}, nil
}

func (f *Fit) forecast(values []float64) float64 {
	w := difference(values)
	residuals := make([]float64, len(w))
	css(w, f.Phi, f.Theta, f.SeasonalPhi, residuals)

	m := len(w)
	wNext := f.Phi*lagged(w, m-1) +
		f.SeasonalPhi*lagged(w, m-seasonalPeriod) -
		f.Phi*f.SeasonalPhi*lagged(w, m-seasonalPeriod-1) +
		f.Theta*residuals[m-1]

	t := len(values) - 1
	return wNext + values[t] + values[t-seasonalPeriod+1] - values[t-seasonalPeriod]
}

// difference applies (1 - B)(1 - B^12).
func difference(y []float64) []float64 {
	lag := seasonalPeriod + 1
	out := make([]float64, 0, len(y)-lag)
	for t := lag; t < len(y); t++ {
		out = append(out, y[t]-y[t-1]-y[t-seasonalPeriod]+y[t-lag])
	}
	return out
}

// css fills residuals for the given coefficients.
func css(w []float64, phi, theta, sphi float64, residuals []float64) {
	prev := 0.0
	for t := range w {
		e := w[t] - phi*lagged(w, t-1) - sphi*lagged(w, t-seasonalPeriod) + phi*sphi*lagged(w, t-seasonalPeriod-1) - theta*prev
		residuals[t] = e
		prev = e
	}
}

// lagged reads w[i], or zero before the start of the series.
func lagged(w []float64, i int) float64 {
	if i < 0 {
		return 0
	}
	return w[i]
}

// constrain maps unbounded optimiser coordinates into (-1, 1).
func constrain(x []float64) (float64, float64, float64) {
	return math.Tanh(x[0]), math.Tanh(x[1]), math.Tanh(x[2])
}

func hasInf(values []float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
