package transactions

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/1/2",
	"1/2/2006",
}

// ParseDate parses a purchase date in any accepted layout. The wall-clock
// fields are kept and relabelled as UTC, so an offset never moves a purchase
// to another calendar day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return WallClockUTC(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// WallClockUTC keeps t's local date and time but drops its zone.
func WallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Normalize validates raw rows. Rows with an unparseable date, a blank
// customer or product, or a negative or non-finite quantity are dropped and
// counted, never zero-filled.
func Normalize(rows []RawRow) *Dataset {
	ds := &Dataset{Transactions: make([]Transaction, 0, len(rows))}
	for _, row := range rows {
		tx, ok := normalizeRow(row)
		if !ok {
			ds.Dropped++
			continue
		}
		ds.Transactions = append(ds.Transactions, tx)
	}
	return ds
}

func normalizeRow(row RawRow) (Transaction, bool) {
	customer := strings.TrimSpace(row.CustomerID)
	product := strings.TrimSpace(row.Product)
	if customer == "" || product == "" {
		return Transaction{}, false
	}
	if math.IsNaN(row.Quantity) || math.IsInf(row.Quantity, 0) || row.Quantity < 0 {
		return Transaction{}, false
	}
	date, err := ParseDate(row.Date)
	if err != nil {
		return Transaction{}, false
	}
	return Transaction{
		CustomerID: customer,
		Product:    product,
		Date:       date,
		Quantity:   row.Quantity,
	}, true
}
