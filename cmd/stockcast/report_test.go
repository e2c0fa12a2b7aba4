package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
)

func TestWriteReport(t *testing.T) {
	last := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rep := report{
		Summary: analytics.Summary{Rows: 4, Customers: 2, Products: 2},
		Movement: aggregate.Summary{
			Threshold: 3,
			TopFast:   []aggregate.ProductMovement{{Product: "Rice", Quantity: 5, Category: aggregate.FastMoving}},
			TopSlow:   []aggregate.ProductMovement{{Product: "Oil", Quantity: 1, Category: aggregate.SlowMoving}},
		},
		NextPurchase: []nextpurchase.Prediction{
			{CustomerID: "C1", Product: "Rice", Purchases: 3, LastPurchase: last, NextDate: last.AddDate(0, 0, 10), Sufficient: true},
			{CustomerID: "C2", Product: "Oil", Purchases: 1, LastPurchase: last},
		},
		Forecasts: []forecast.Result{
			{CustomerID: "C1", Product: "Rice", PointForecast: 2.5, Label: forecast.LabelEstimatedAverage, Outcome: forecast.OutcomeInsufficientData},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "MOVEMENT (median 3.00)")
	assert.Contains(t, out, "Fast-Moving")
	assert.Contains(t, out, "2024-03-11")
	assert.Contains(t, out, nextpurchase.NotEnoughData)
	assert.Contains(t, out, "estimated average")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"C1", "C2"}, splitList(" C1, ,C2 "))
	assert.Nil(t, splitList(""))
}

func TestFileSource(t *testing.T) {
	src, err := fileSource("/tmp/tx.CSV", "")
	require.NoError(t, err)
	assert.NotNil(t, src)

	src, err = fileSource("/tmp/tx.xlsx", "Sheet1")
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = fileSource("/tmp/tx.json", "")
	require.Error(t, err)
}

func TestProgressDisabledIsNoop(t *testing.T) {
	p := newProgress(&bytes.Buffer{}, true)
	p.update(1, 2)
	p.finish()
	assert.Nil(t, p.bar)
}
