package transactions

import (
	"context"
	"errors"
	"fmt"
	"math"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const bigQueryTransactionsSQL = `
SELECT
  CAST(customer_id AS STRING) AS customer_id,
  CAST(product AS STRING) AS product,
  CAST(purchase_date AS STRING) AS purchase_date,
  SAFE_CAST(quantity AS FLOAT64) AS quantity
FROM %s
`

type bigQueryClient interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
	TransactionsTableRef() string
}

type rowIterator interface {
	Next(dst any) error
}

type bigQueryRow struct {
	CustomerID cloudbigquery.NullString  `bigquery:"customer_id"`
	Product    cloudbigquery.NullString  `bigquery:"product"`
	Date       cloudbigquery.NullString  `bigquery:"purchase_date"`
	Quantity   cloudbigquery.NullFloat64 `bigquery:"quantity"`
}

// BigQuerySource reads the warehouse copy of the transactions table.
type BigQuerySource struct {
	client bigQueryClient
}

func NewBigQuerySource(client bigQueryClient) (*BigQuerySource, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if client.TransactionsTableRef() == "" {
		return nil, fmt.Errorf("bigquery transactions table required")
	}
	return &BigQuerySource{client: client}, nil
}

// Fetch implements Source.
func (s *BigQuerySource) Fetch(ctx context.Context) ([]RawRow, error) {
	iter, err := s.client.Query(ctx, fmt.Sprintf(bigQueryTransactionsSQL, s.client.TransactionsTableRef()), nil)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return readBigQueryRows(iter)
}

func readBigQueryRows(iter rowIterator) ([]RawRow, error) {
	out := make([]RawRow, 0)
	for {
		var row bigQueryRow
		if err := iter.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading transaction row: %w", err)
		}
		raw := RawRow{
			CustomerID: row.CustomerID.StringVal,
			Product:    row.Product.StringVal,
			Date:       row.Date.StringVal,
			Quantity:   math.NaN(),
		}
		if row.Quantity.Valid {
			raw.Quantity = row.Quantity.Float64
		}
		out = append(out, raw)
	}
	return out, nil
}
