package aggregate

import (
	"sort"
	"time"

	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/shopspring/decimal"
)

// MonthlyQuantity is the summed quantity of a product in one calendar month.
type MonthlyQuantity struct {
	Product  string    `json:"product"`
	Month    time.Time `json:"month"`
	Quantity float64   `json:"quantity"`
}

// MonthStart truncates t to the first day of its calendar month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthlyByProduct sums quantity per product and month. Only months with at
// least one transaction appear. Rows are ordered by product then month.
func MonthlyByProduct(txs []transactions.Transaction) []MonthlyQuantity {
	type key struct {
		product string
		month   time.Time
	}
	sums := make(map[key]decimal.Decimal)
	for _, tx := range txs {
		k := key{product: tx.Product, month: MonthStart(tx.Date)}
		sums[k] = sums[k].Add(decimal.NewFromFloat(tx.Quantity))
	}

	out := make([]MonthlyQuantity, 0, len(sums))
	for k, sum := range sums {
		out = append(out, MonthlyQuantity{Product: k.product, Month: k.month, Quantity: sum.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product != out[j].Product {
			return out[i].Product < out[j].Product
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// ForProduct returns the product's transactions in source order.
func ForProduct(txs []transactions.Transaction, product string) []transactions.Transaction {
	out := make([]transactions.Transaction, 0)
	for _, tx := range txs {
		if tx.Product == product {
			out = append(out, tx)
		}
	}
	return out
}
