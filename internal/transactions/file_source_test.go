package transactions

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "\ufeffCustomer ID,Product,Date,Quantity\n" +
	"C1,Rice,2024-01-05,2\n" +
	"C1,Rice,2024-02-05,\"1,000\"\n" +
	"\n" +
	"C2,Oil,05/02/2024,abc\n"

func TestReadCSVMapsHeadersAndQuantities(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, RawRow{CustomerID: "C1", Product: "Rice", Date: "2024-01-05", Quantity: 2}, rows[0])
	assert.Equal(t, 1000.0, rows[1].Quantity)
	assert.True(t, math.IsNaN(rows[2].Quantity))

	ds := Normalize(rows)
	assert.Len(t, ds.Transactions, 2)
	assert.Equal(t, 1, ds.Dropped)
}

func TestReadCSVAlternateHeaders(t *testing.T) {
	content := "qty,purchase_date,customer_id,product_name\n3,2024-03-01,C7,Tea\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, RawRow{CustomerID: "C7", Product: "Tea", Date: "2024-03-01", Quantity: 3}, rows[0])
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("Customer ID,Product\nC1,Rice\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Date, Quantity")

	rows, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src, err := NewCSVSource(path)
	require.NoError(t, err)
	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	missing, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background())
	require.Error(t, err)

	_, err = NewCSVSource(" ")
	require.Error(t, err)
}

func TestXLSXSourceReadsFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Customer ID", "Product", "Date", "Quantity"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"C1", "Rice", "2024-01-05", 2}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"C2", "Oil", "2024-01-09", 4.5}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := NewXLSXSource(path, "")
	require.NoError(t, err)
	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "C1", rows[0].CustomerID)
	assert.Equal(t, 4.5, rows[1].Quantity)

	named, err := NewXLSXSource(path, "Missing")
	require.NoError(t, err)
	_, err = named.Fetch(context.Background())
	require.Error(t, err)
}
