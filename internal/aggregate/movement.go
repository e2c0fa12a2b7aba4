// Package aggregate derives per-product and per-customer tables from cleaned
// transactions. Every function is read-only and returns empty output for
// empty input.
package aggregate

import (
	"sort"

	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/shopspring/decimal"
)

type Category string

const (
	FastMoving Category = "Fast-Moving"
	SlowMoving Category = "Slow-Moving"
)

// ProductMovement is one row of the movement classification.
type ProductMovement struct {
	Product  string   `json:"product"`
	Quantity float64  `json:"quantity"`
	Category Category `json:"category"`
}

// Summary condenses a movement classification for dashboards.
type Summary struct {
	Threshold float64           `json:"threshold"`
	Products  int               `json:"products"`
	Fast      int               `json:"fast_moving"`
	Slow      int               `json:"slow_moving"`
	TopFast   []ProductMovement `json:"top_fast"`
	TopSlow   []ProductMovement `json:"top_slow"`
}

// TotalByProduct sums quantity per product.
func TotalByProduct(txs []transactions.Transaction) map[string]float64 {
	sums, _ := productTotals(txs)
	out := make(map[string]float64, len(sums))
	for product, sum := range sums {
		out[product] = sum.InexactFloat64()
	}
	return out
}

// ClassifyMovement splits products around the median product total. A total
// equal to the median is Fast-Moving. Rows are ordered by quantity descending
// and then by product name.
func ClassifyMovement(txs []transactions.Transaction) []ProductMovement {
	movements, _ := classify(txs)
	return movements
}

// MovementSummary classifies products and keeps the topN of each category.
// topN <= 0 keeps every product.
func MovementSummary(txs []transactions.Transaction, topN int) Summary {
	movements, threshold := classify(txs)
	summary := Summary{
		Threshold: threshold.InexactFloat64(),
		Products:  len(movements),
		TopFast:   make([]ProductMovement, 0),
		TopSlow:   make([]ProductMovement, 0),
	}
	for _, m := range movements {
		if m.Category == FastMoving {
			summary.Fast++
			if topN <= 0 || len(summary.TopFast) < topN {
				summary.TopFast = append(summary.TopFast, m)
			}
			continue
		}
		summary.Slow++
		if topN <= 0 || len(summary.TopSlow) < topN {
			summary.TopSlow = append(summary.TopSlow, m)
		}
	}
	return summary
}

func classify(txs []transactions.Transaction) ([]ProductMovement, decimal.Decimal) {
	sums, products := productTotals(txs)
	if len(products) == 0 {
		return make([]ProductMovement, 0), decimal.Zero
	}

	values := make([]decimal.Decimal, 0, len(products))
	for _, product := range products {
		values = append(values, sums[product])
	}
	threshold := median(values)

	out := make([]ProductMovement, 0, len(products))
	for _, product := range products {
		category := SlowMoving
		if sums[product].GreaterThanOrEqual(threshold) {
			category = FastMoving
		}
		out = append(out, ProductMovement{
			Product:  product,
			Quantity: sums[product].InexactFloat64(),
			Category: category,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		qi, qj := sums[out[i].Product], sums[out[j].Product]
		if !qi.Equal(qj) {
			return qi.GreaterThan(qj)
		}
		return out[i].Product < out[j].Product
	})
	return out, threshold
}

// median averages the two middle values for an even count.
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// productTotals returns exact sums and the products in first-appearance order.
func productTotals(txs []transactions.Transaction) (map[string]decimal.Decimal, []string) {
	sums := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, tx := range txs {
		current, ok := sums[tx.Product]
		if !ok {
			order = append(order, tx.Product)
		}
		sums[tx.Product] = current.Add(decimal.NewFromFloat(tx.Quantity))
	}
	return sums, order
}
