package transactions

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, value := range []string{"2024-03-07", "2024/03/07", "2024/3/7", "03/07/2024", "3/7/2024", " 2024-03-07 "} {
		got, err := ParseDate(value)
		require.NoError(t, err, value)
		assert.True(t, want.Equal(got), "%s parsed as %s", value, got)
	}

	got, err := ParseDate("2024-03-07 18:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 7, 18, 30, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-03-07T23:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-01-01T02:00:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, 2024, got.Year())

	got, err = ParseDate("2024-12-31T22:00:00-08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "yesterday", "2024-13-01", "07.03.2024"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeDropsInvalidRows(t *testing.T) {
	rows := []RawRow{
		{CustomerID: "C1", Product: "Rice", Date: "2024-01-05", Quantity: 2},
		{CustomerID: "C1", Product: "Rice", Date: "not-a-date", Quantity: 2},
		{CustomerID: " ", Product: "Rice", Date: "2024-01-05", Quantity: 2},
		{CustomerID: "C2", Product: "", Date: "2024-01-05", Quantity: 2},
		{CustomerID: "C2", Product: "Oil", Date: "2024-01-05", Quantity: -1},
		{CustomerID: "C2", Product: "Oil", Date: "2024-01-05", Quantity: math.NaN()},
		{CustomerID: " C2 ", Product: " Oil ", Date: "2024-02-01", Quantity: 0},
	}

	ds := Normalize(rows)
	require.Len(t, ds.Transactions, 2)
	assert.Equal(t, 5, ds.Dropped)
	assert.Equal(t, "C2", ds.Transactions[1].CustomerID)
	assert.Equal(t, "Oil", ds.Transactions[1].Product)
	assert.Equal(t, 0.0, ds.Transactions[1].Quantity)
}

func TestDatasetDistinctKeepsFirstAppearance(t *testing.T) {
	ds := Normalize([]RawRow{
		{CustomerID: "C9", Product: "Tea", Date: "2024-01-05", Quantity: 1},
		{CustomerID: "C1", Product: "Rice", Date: "2024-01-02", Quantity: 1},
		{CustomerID: "C9", Product: "Rice", Date: "2024-01-09", Quantity: 1},
		{CustomerID: "C3", Product: "Tea", Date: "2023-12-30", Quantity: 1},
	})

	assert.Equal(t, []string{"C9", "C1", "C3"}, ds.Customers())
	assert.Equal(t, []string{"Tea", "Rice"}, ds.Products())

	first, last, ok := ds.DateRange()
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), last)

	assert.Len(t, ForCustomer(ds.Transactions, "C9"), 2)
	assert.Empty(t, ForCustomer(ds.Transactions, "nobody"))
}

func TestEmptyDataset(t *testing.T) {
	var nilDS *Dataset
	assert.True(t, nilDS.Empty())
	assert.Nil(t, nilDS.Customers())

	ds := Normalize(nil)
	assert.True(t, ds.Empty())
	_, _, ok := ds.DateRange()
	assert.False(t, ok)
}
