package transactions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type column int

const (
	colCustomer column = iota
	colProduct
	colDate
	colQuantity
)

var headerAliases = map[string]column{
	"customerid":   colCustomer,
	"customer":     colCustomer,
	"product":      colProduct,
	"productname":  colProduct,
	"item":         colProduct,
	"date":         colDate,
	"purchasedate": colDate,
	"orderdate":    colDate,
	"quantity":     colQuantity,
	"qty":          colQuantity,
}

var requiredColumns = []struct {
	col  column
	name string
}{
	{colCustomer, "Customer ID"},
	{colProduct, "Product"},
	{colDate, "Date"},
	{colQuantity, "Quantity"},
}

var headerReplacer = strings.NewReplacer(" ", "", "_", "", "-", "", "\ufeff", "")

// headerIndex maps the four required columns onto positions in a header row.
// Matching ignores case, spaces, underscores and dashes.
func headerIndex(header []string) (map[column]int, error) {
	idx := make(map[column]int, len(requiredColumns))
	for i, name := range header {
		key := headerReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
		if col, ok := headerAliases[key]; ok {
			if _, dup := idx[col]; !dup {
				idx[col] = i
			}
		}
	}
	missing := []string{}
	for _, req := range requiredColumns {
		if _, ok := idx[req.col]; !ok {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func rowFromRecord(record []string, idx map[column]int) RawRow {
	cell := func(col column) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	quantity, err := strconv.ParseFloat(strings.ReplaceAll(cell(colQuantity), ",", ""), 64)
	if err != nil {
		quantity = math.NaN()
	}
	return RawRow{
		CustomerID: cell(colCustomer),
		Product:    cell(colProduct),
		Date:       cell(colDate),
		Quantity:   quantity,
	}
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CSVSource reads a CSV export with a header row.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) (*CSVSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("csv path required")
	}
	return &CSVSource{path: path}, nil
}

// Fetch implements Source.
func (s *CSVSource) Fetch(ctx context.Context) ([]RawRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV parses CSV content with a header row into raw rows.
func ReadCSV(ctx context.Context, r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []RawRow{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	out := make([]RawRow, 0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if isBlank(record) {
			continue
		}
		out = append(out, rowFromRecord(record, idx))
	}
	return out, nil
}

// XLSXSource reads a worksheet of an Excel workbook with a header row.
type XLSXSource struct {
	path  string
	sheet string
}

// NewXLSXSource reads the named sheet, or the first sheet when sheet is empty.
func NewXLSXSource(path, sheet string) (*XLSXSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("xlsx path required")
	}
	return &XLSXSource{path: path, sheet: strings.TrimSpace(sheet)}, nil
}

// Fetch implements Source.
func (s *XLSXSource) Fetch(ctx context.Context) ([]RawRow, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return readWorkbook(ctx, f, s.sheet)
}

func readWorkbook(ctx context.Context, f *excelize.File, sheet string) ([]RawRow, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return []RawRow{}, nil
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return []RawRow{}, nil
	}
	idx, err := headerIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	out := make([]RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		out = append(out, rowFromRecord(record, idx))
	}
	return out, nil
}
