package transactions

import (
	"context"
	"errors"
	"math"
	"testing"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

type fakeRowIterator struct {
	rows []bigQueryRow
	err  error
	pos  int
}

func (f *fakeRowIterator) Next(dst any) error {
	if f.pos >= len(f.rows) {
		if f.err != nil {
			return f.err
		}
		return iterator.Done
	}
	*(dst.(*bigQueryRow)) = f.rows[f.pos]
	f.pos++
	return nil
}

func TestReadBigQueryRows(t *testing.T) {
	iter := &fakeRowIterator{rows: []bigQueryRow{
		{
			CustomerID: cloudbigquery.NullString{StringVal: "C1", Valid: true},
			Product:    cloudbigquery.NullString{StringVal: "Rice", Valid: true},
			Date:       cloudbigquery.NullString{StringVal: "2024-01-05", Valid: true},
			Quantity:   cloudbigquery.NullFloat64{Float64: 2, Valid: true},
		},
		{
			CustomerID: cloudbigquery.NullString{StringVal: "C1", Valid: true},
			Product:    cloudbigquery.NullString{StringVal: "Rice", Valid: true},
			Date:       cloudbigquery.NullString{StringVal: "2024-02-05", Valid: true},
		},
	}}

	rows, err := readBigQueryRows(iter)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, rows[0].Quantity)
	assert.True(t, math.IsNaN(rows[1].Quantity))
}

func TestReadBigQueryRowsPropagatesErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := readBigQueryRows(&fakeRowIterator{err: boom})
	require.ErrorIs(t, err, boom)
}

type stubBigQuery struct {
	ref string
}

func (s stubBigQuery) Query(context.Context, string, []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error) {
	return nil, errors.New("not used")
}

func (s stubBigQuery) TransactionsTableRef() string { return s.ref }

func TestNewBigQuerySourceValidation(t *testing.T) {
	_, err := NewBigQuerySource(nil)
	require.Error(t, err)

	_, err = NewBigQuerySource(stubBigQuery{})
	require.Error(t, err)

	src, err := NewBigQuerySource(stubBigQuery{ref: "`p.d.transactions`"})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
}
