// Package nextpurchase estimates when a customer will buy a product again
// from the mean gap between past purchases.
package nextpurchase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"gonum.org/v1/gonum/stat"
)

// NotEnoughData is rendered in place of a date when a pair has fewer than
// two purchases.
const NotEnoughData = "Not enough data"

// Prediction is the estimate for one (customer, product) pair. NextDate and
// AvgGapDays are only meaningful when Sufficient is true.
type Prediction struct {
	CustomerID   string
	Product      string
	Purchases    int
	LastPurchase time.Time
	AvgGapDays   float64
	NextDate     time.Time
	Sufficient   bool
}

type predictionJSON struct {
	CustomerID   string   `json:"customer_id"`
	Product      string   `json:"product"`
	Purchases    int      `json:"purchases"`
	LastPurchase string   `json:"last_purchase"`
	AvgGapDays   *float64 `json:"avg_gap_days"`
	NextPurchase string   `json:"next_purchase_date"`
}

// MarshalJSON renders the next date as YYYY-MM-DD, or the NotEnoughData
// sentinel.
func (p Prediction) MarshalJSON() ([]byte, error) {
	out := predictionJSON{
		CustomerID:   p.CustomerID,
		Product:      p.Product,
		Purchases:    p.Purchases,
		NextPurchase: NotEnoughData,
	}
	if !p.LastPurchase.IsZero() {
		out.LastPurchase = p.LastPurchase.Format(time.DateOnly)
	}
	if p.Sufficient {
		avg := p.AvgGapDays
		out.AvgGapDays = &avg
		out.NextPurchase = p.NextDate.Format(time.DateOnly)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var in predictionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := Prediction{CustomerID: in.CustomerID, Product: in.Product, Purchases: in.Purchases}
	if in.LastPurchase != "" {
		last, err := time.Parse(time.DateOnly, in.LastPurchase)
		if err != nil {
			return fmt.Errorf("last_purchase: %w", err)
		}
		out.LastPurchase = last
	}
	if in.NextPurchase != "" && in.NextPurchase != NotEnoughData {
		next, err := time.Parse(time.DateOnly, in.NextPurchase)
		if err != nil {
			return fmt.Errorf("next_purchase_date: %w", err)
		}
		out.NextDate = next
		out.Sufficient = true
		if in.AvgGapDays != nil {
			out.AvgGapDays = *in.AvgGapDays
		}
	}
	*p = out
	return nil
}

// Estimate returns one prediction per distinct (customer, product) pair,
// ordered by customer then product first appearance.
func Estimate(txs []transactions.Transaction) []Prediction {
	type key struct{ customer, product string }
	dates := make(map[key][]time.Time)
	order := make([]key, 0)
	for _, tx := range txs {
		k := key{customer: tx.CustomerID, product: tx.Product}
		if _, ok := dates[k]; !ok {
			order = append(order, k)
		}
		dates[k] = append(dates[k], tx.Date)
	}

	customerRank := make(map[string]int)
	for _, k := range order {
		if _, ok := customerRank[k.customer]; !ok {
			customerRank[k.customer] = len(customerRank)
		}
	}
	grouped := make([][]key, len(customerRank))
	for _, k := range order {
		grouped[customerRank[k.customer]] = append(grouped[customerRank[k.customer]], k)
	}

	out := make([]Prediction, 0, len(order))
	for _, keys := range grouped {
		for _, k := range keys {
			out = append(out, estimateOne(k.customer, k.product, dates[k]))
		}
	}
	return out
}

// EstimateFor predicts a single pair from its purchase dates.
func EstimateFor(customerID, product string, dates []time.Time) Prediction {
	return estimateOne(customerID, product, dates)
}

func estimateOne(customerID, product string, dates []time.Time) Prediction {
	p := Prediction{CustomerID: customerID, Product: product, Purchases: len(dates)}
	for _, d := range dates {
		if d.After(p.LastPurchase) {
			p.LastPurchase = d
		}
	}
	gaps := aggregate.DayGaps(dates)
	if len(gaps) == 0 {
		return p
	}
	p.AvgGapDays = stat.Mean(gaps, nil)
	p.NextDate = addDays(p.LastPurchase, p.AvgGapDays)
	p.Sufficient = true
	return p
}

// addDays offsets t by a fractional number of days and truncates the result
// to its calendar date.
func addDays(t time.Time, days float64) time.Time {
	shifted := t.Add(time.Duration(days * float64(24*time.Hour))).UTC()
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}
