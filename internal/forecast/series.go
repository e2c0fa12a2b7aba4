package forecast

import (
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"gonum.org/v1/gonum/stat"
)

// Point is the summed quantity of one populated month.
type Point struct {
	Month    time.Time `json:"month"`
	Quantity float64   `json:"quantity"`
}

// Series is a monthly quantity series in ascending month order. Months
// without purchases are absent, not zero.
type Series []Point

// BuildSeries sums a single product's transactions by month.
func BuildSeries(txs []transactions.Transaction) Series {
	monthly := aggregate.MonthlyByProduct(txs)
	out := make(Series, 0, len(monthly))
	for _, m := range monthly {
		out = append(out, Point{Month: m.Month, Quantity: m.Quantity})
	}
	return out
}

// Values returns the quantities in month order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Quantity
	}
	return out
}

// Mean is the fallback estimate. It is zero for an empty series.
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	return stat.Mean(s.Values(), nil)
}
