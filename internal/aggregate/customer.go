package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// ProductCount is how many purchases a customer made of one product.
type ProductCount struct {
	Product string `json:"product"`
	Count   int    `json:"count"`
}

// Heatmap is a zero-filled product by month matrix of summed quantity.
// Cells[i][j] belongs to Products[i] and Months[j].
type Heatmap struct {
	Products []string    `json:"products"`
	Months   []time.Time `json:"months"`
	Cells    [][]float64 `json:"cells"`
}

// ProductInterval is the mean gap between a customer's purchases of a product.
// AvgDays is nil when there is only one purchase.
type ProductInterval struct {
	Product   string   `json:"product"`
	Purchases int      `json:"purchases"`
	AvgDays   *float64 `json:"avg_days"`
}

// PurchaseFrequency counts the customer's purchases per product, most
// frequent first.
func PurchaseFrequency(txs []transactions.Transaction, customerID string) []ProductCount {
	counts := make(map[string]int)
	for _, tx := range transactions.ForCustomer(txs, customerID) {
		counts[tx.Product]++
	}
	out := make([]ProductCount, 0, len(counts))
	for product, count := range counts {
		out = append(out, ProductCount{Product: product, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Product < out[j].Product
	})
	return out
}

// MonthlyHeatmap pivots the customer's purchases into products by populated
// months, both sorted ascending.
func MonthlyHeatmap(txs []transactions.Transaction, customerID string) Heatmap {
	rows := transactions.ForCustomer(txs, customerID)
	monthly := MonthlyByProduct(rows)

	productIdx := make(map[string]int)
	monthSet := make(map[time.Time]struct{})
	hm := Heatmap{Products: make([]string, 0), Months: make([]time.Time, 0), Cells: make([][]float64, 0)}
	for _, m := range monthly {
		if _, ok := productIdx[m.Product]; !ok {
			productIdx[m.Product] = len(hm.Products)
			hm.Products = append(hm.Products, m.Product)
		}
		monthSet[m.Month] = struct{}{}
	}
	for month := range monthSet {
		hm.Months = append(hm.Months, month)
	}
	sort.Slice(hm.Months, func(i, j int) bool { return hm.Months[i].Before(hm.Months[j]) })

	monthIdx := make(map[time.Time]int, len(hm.Months))
	for i, month := range hm.Months {
		monthIdx[month] = i
	}
	cells := make([][]decimal.Decimal, len(hm.Products))
	for i := range cells {
		cells[i] = make([]decimal.Decimal, len(hm.Months))
	}
	for _, tx := range rows {
		i, j := productIdx[tx.Product], monthIdx[MonthStart(tx.Date)]
		cells[i][j] = cells[i][j].Add(decimal.NewFromFloat(tx.Quantity))
	}
	for _, row := range cells {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = v.InexactFloat64()
		}
		hm.Cells = append(hm.Cells, out)
	}
	return hm
}

// AverageIntervals reports the customer's mean purchase gap per product,
// ordered by product name.
func AverageIntervals(txs []transactions.Transaction, customerID string) []ProductInterval {
	dates := make(map[string][]time.Time)
	for _, tx := range transactions.ForCustomer(txs, customerID) {
		dates[tx.Product] = append(dates[tx.Product], tx.Date)
	}
	out := make([]ProductInterval, 0, len(dates))
	for product, ds := range dates {
		interval := ProductInterval{Product: product, Purchases: len(ds)}
		if gaps := DayGaps(ds); len(gaps) > 0 {
			avg := stat.Mean(gaps, nil)
			interval.AvgDays = &avg
		}
		out = append(out, interval)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out
}

// DayGaps sorts dates and returns the whole days between consecutive ones.
// Partial days are floored.
func DayGaps(dates []time.Time) []float64 {
	if len(dates) < 2 {
		return nil
	}
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, math.Floor(sorted[i].Sub(sorted[i-1]).Hours()/24))
	}
	return gaps
}
