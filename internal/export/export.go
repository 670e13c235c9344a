package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" and "csv" in any case; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName builds the download name of an export.
func FileName(base string, f Format) string {
	return fmt.Sprintf("purchase_suggestions_%s.%s", base, f)
}

// Header is the column set of every export.
var Header = []string{
	"product_code",
	"product_name",
	"current_stock",
	"min_stock",
	"expected_demand",
	"suggested_purchase",
	"packaging",
	"best_supplier",
	"best_cost",
	"est_total_cost",
}

func row(s domain.PurchaseSuggestion) []any {
	return []any{
		s.ProductCode,
		s.ProductName,
		s.CurrentStock,
		s.MinStock,
		s.ExpectedDemand,
		s.SuggestedPurchase,
		s.Packaging,
		s.BestSupplier,
		s.BestCost,
		s.EstTotalCost,
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Write renders rows in format f.
func Write(w io.Writer, f Format, rows []domain.PurchaseSuggestion) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteCSV writes a comma separated file with a header row.
func WriteCSV(w io.Writer, rows []domain.PurchaseSuggestion) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(Header))
	for _, r := range rows {
		for i, v := range row(r) {
			record[i] = text(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single sheet workbook. Each column is as wide as its
// longest value plus two characters.
func WriteXLSX(w io.Writer, rows []domain.PurchaseSuggestion) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	widths := make([]int, len(Header))

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		values := row(r)
		for c, v := range values {
			if n := utf8.RuneCountInString(text(v)); n > widths[c] {
				widths[c] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for c, width := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(width+2)); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
