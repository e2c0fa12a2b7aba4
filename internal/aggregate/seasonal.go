package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/stockcast/internal/season"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/shopspring/decimal"
)

// Kind selects the season dimension of a seasonal aggregate.
type Kind string

const (
	KindWeather  Kind = "weather"
	KindFestival Kind = "festival"
)

// ParseKind accepts "weather" or "festival", case-insensitively.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindWeather:
		return KindWeather, nil
	case KindFestival:
		return KindFestival, nil
	default:
		return "", fmt.Errorf("unknown season kind %q", value)
	}
}

// SeasonalQuantity is the summed quantity of a product within one season label.
type SeasonalQuantity struct {
	Product  string  `json:"product"`
	Season   string  `json:"season"`
	Quantity float64 `json:"quantity"`
}

// TaggedTransaction is a transaction annotated with its season labels.
type TaggedTransaction struct {
	transactions.Transaction
	Weather  season.Weather  `json:"weather_season"`
	Festival season.Festival `json:"festival_season"`
}

// Tag annotates each transaction with its weather and festival labels.
func Tag(txs []transactions.Transaction, tagger *season.Tagger) []TaggedTransaction {
	out := make([]TaggedTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TaggedTransaction{
			Transaction: tx,
			Weather:     season.WeatherSeason(tx.Date.Month()),
			Festival:    tagger.Festival(tx.Date),
		})
	}
	return out
}

// SeasonalByProduct sums quantity per product and season label. Festival
// output lists all eight festival labels for every product, zero-filled.
// Weather output lists only the labels a product was bought in. Products are
// ordered by name, labels in canonical order.
func SeasonalByProduct(txs []transactions.Transaction, tagger *season.Tagger, kind Kind) ([]SeasonalQuantity, error) {
	var labels []string
	switch kind {
	case KindWeather:
		for _, w := range season.WeatherLabels() {
			labels = append(labels, string(w))
		}
	case KindFestival:
		for _, f := range season.FestivalLabels() {
			labels = append(labels, string(f))
		}
	default:
		return nil, fmt.Errorf("unknown season kind %q", kind)
	}

	sums := make(map[string]map[string]decimal.Decimal)
	for _, tx := range Tag(txs, tagger) {
		label := string(tx.Weather)
		if kind == KindFestival {
			label = string(tx.Festival)
		}
		bucket, ok := sums[tx.Product]
		if !ok {
			bucket = make(map[string]decimal.Decimal)
			sums[tx.Product] = bucket
		}
		bucket[label] = bucket[label].Add(decimal.NewFromFloat(tx.Quantity))
	}

	products := make([]string, 0, len(sums))
	for product := range sums {
		products = append(products, product)
	}
	sort.Strings(products)

	out := make([]SeasonalQuantity, 0, len(products)*len(labels))
	for _, product := range products {
		for _, label := range labels {
			sum, ok := sums[product][label]
			if !ok && kind == KindWeather {
				continue
			}
			out = append(out, SeasonalQuantity{Product: product, Season: label, Quantity: sum.InexactFloat64()})
		}
	}
	return out, nil
}

// FilterRange keeps transactions whose calendar date falls within [from, to].
// A zero bound leaves that side open.
func FilterRange(txs []transactions.Transaction, from, to time.Time) []transactions.Transaction {
	lo, hi := dayOf(from), dayOf(to)
	out := make([]transactions.Transaction, 0, len(txs))
	for _, tx := range txs {
		d := dayOf(tx.Date)
		if !from.IsZero() && d.Before(lo) {
			continue
		}
		if !to.IsZero() && d.After(hi) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// FestivalDrilldown returns the product's tagged rows that fall in festival.
// An empty product matches every product.
func FestivalDrilldown(txs []transactions.Transaction, tagger *season.Tagger, product string, festival season.Festival) []TaggedTransaction {
	out := make([]TaggedTransaction, 0)
	for _, tx := range Tag(txs, tagger) {
		if product != "" && tx.Product != product {
			continue
		}
		if tx.Festival == festival {
			out = append(out, tx)
		}
	}
	return out
}

// Trend is the seasonal picture of one product over a date range.
type Trend struct {
	Product       string             `json:"product"`
	Rows          int                `json:"rows"`
	RangeFallback bool               `json:"range_fallback"`
	Weather       []SeasonalQuantity `json:"weather"`
	Festival      []SeasonalQuantity `json:"festival"`
}

// ProductTrend aggregates one product's purchases within [from, to] by weather
// and festival season. When the range holds no purchases it falls back to all
// purchases up to to and sets RangeFallback.
func ProductTrend(txs []transactions.Transaction, tagger *season.Tagger, product string, from, to time.Time) Trend {
	rows := FilterRange(ForProduct(txs, product), from, to)
	trend := Trend{Product: product}
	if len(rows) == 0 && !from.IsZero() {
		rows = FilterRange(ForProduct(txs, product), time.Time{}, to)
		trend.RangeFallback = true
	}
	trend.Rows = len(rows)
	// Both kinds are known, so these cannot fail.
	trend.Weather, _ = SeasonalByProduct(rows, tagger, KindWeather)
	trend.Festival, _ = SeasonalByProduct(rows, tagger, KindFestival)
	return trend
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
