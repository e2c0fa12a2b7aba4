package transactions

import (
	"errors"
	"time"
)

// ErrEmptyDataset is returned when a source yields no usable rows.
var ErrEmptyDataset = errors.New("transactions: dataset is empty")

// RawRow is a purchase record as returned by a source, before validation.
type RawRow struct {
	CustomerID string
	Product    string
	Date       string
	Quantity   float64
}

// Transaction is a validated purchase record. Date is UTC.
type Transaction struct {
	CustomerID string    `json:"customer_id"`
	Product    string    `json:"product"`
	Date       time.Time `json:"date"`
	Quantity   float64   `json:"quantity"`
}

// Dataset holds the cleaned transactions in source order together with the
// number of rows dropped during ingestion.
type Dataset struct {
	Transactions []Transaction `json:"transactions"`
	Dropped      int           `json:"dropped"`
}

// Empty reports whether the dataset has no transactions.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Transactions) == 0
}

// Customers returns the distinct customer ids in first-appearance order.
func (d *Dataset) Customers() []string {
	if d == nil {
		return nil
	}
	return distinct(d.Transactions, func(tx Transaction) string { return tx.CustomerID })
}

// Products returns the distinct products in first-appearance order.
func (d *Dataset) Products() []string {
	if d == nil {
		return nil
	}
	return distinct(d.Transactions, func(tx Transaction) string { return tx.Product })
}

// DateRange returns the earliest and latest transaction dates.
func (d *Dataset) DateRange() (time.Time, time.Time, bool) {
	if d.Empty() {
		return time.Time{}, time.Time{}, false
	}
	first, last := d.Transactions[0].Date, d.Transactions[0].Date
	for _, tx := range d.Transactions[1:] {
		if tx.Date.Before(first) {
			first = tx.Date
		}
		if tx.Date.After(last) {
			last = tx.Date
		}
	}
	return first, last, true
}

// ForCustomer returns the customer's transactions in source order.
func ForCustomer(txs []Transaction, customerID string) []Transaction {
	out := make([]Transaction, 0)
	for _, tx := range txs {
		if tx.CustomerID == customerID {
			out = append(out, tx)
		}
	}
	return out
}

func distinct(txs []Transaction, key func(Transaction) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tx := range txs {
		k := key(tx)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
