package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
)

// Kind names one of the input tables.
type Kind string

const (
	KindSales     Kind = "sales"
	KindPurchases Kind = "purchases"
	KindProducts  Kind = "products"
	KindPackaging Kind = "packaging"
)

// Column layouts of the header-less, semicolon separated exports.
var columns = map[Kind][]string{
	KindSales:     {"sale_date", "product_id", "quantity", "total_amount"},
	KindPurchases: {"purchase_date", "product_id", "supplier_name", "quantity_purchased", "total_amount"},
	KindProducts:  {"product_id", "product_code", "product_name", "current_stock", "unit_conversion"},
	KindPackaging: {"product_id", "name", "unit_conversion"},
}

// Columns returns the expected column order of kind.
func Columns(kind Kind) []string {
	return append([]string(nil), columns[kind]...)
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

// eachRow calls fn for every record of r after checking it has all the
// columns of kind.
func eachRow(r io.Reader, kind Kind, fn func(rec []string)) error {
	reader := newReader(r)
	want := columns[kind]
	line := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", kind, line, err)
		}
		if len(rec) < len(want) {
			return domain.NewContractError("ingest_"+string(kind), want[len(rec)],
				fmt.Sprintf("line %d has %d of %d columns", line, len(rec), len(want)))
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		fn(rec)
	}
}

// ReadSales parses a sales export. Rows with an unparsable date, quantity or
// amount are dropped and counted.
func ReadSales(r io.Reader) ([]domain.SalesRecord, int, error) {
	var (
		out     []domain.SalesRecord
		dropped int
	)
	err := eachRow(r, KindSales, func(rec []string) {
		date, ok1 := ParseDayFirst(rec[0])
		qty, ok2 := ParseDecimal(rec[2])
		amount, ok3 := ParseDecimal(rec[3])
		id := suggest.NormalizeProductID(rec[1])
		if !ok1 || !ok2 || !ok3 || id == "" {
			dropped++
			return
		}
		out = append(out, domain.SalesRecord{ProductID: id, SaleDate: date, Quantity: qty, TotalAmount: amount})
	})
	return out, dropped, err
}

// ReadPurchases parses a purchases export. Supplier names are cut to the
// display length.
func ReadPurchases(r io.Reader) ([]domain.PurchaseRecord, int, error) {
	var (
		out     []domain.PurchaseRecord
		dropped int
	)
	err := eachRow(r, KindPurchases, func(rec []string) {
		date, ok1 := ParseDayFirst(rec[0])
		qty, ok2 := ParseDecimal(rec[3])
		amount, ok3 := ParseDecimal(rec[4])
		id := suggest.NormalizeProductID(rec[1])
		if !ok1 || !ok2 || !ok3 || id == "" {
			dropped++
			return
		}
		out = append(out, domain.PurchaseRecord{
			ProductID:         id,
			PurchaseDate:      date,
			SupplierName:      suggest.TruncateName(rec[2], suggest.SupplierNameMaxLen),
			QuantityPurchased: qty,
			TotalAmount:       amount,
		})
	})
	return out, dropped, err
}

// ReadProducts parses the product master. A missing stock reads as 0 and a
// missing unit conversion as 1.
func ReadProducts(r io.Reader) ([]domain.ProductRecord, int, error) {
	var (
		out     []domain.ProductRecord
		dropped int
	)
	err := eachRow(r, KindProducts, func(rec []string) {
		id := suggest.NormalizeProductID(rec[0])
		if id == "" {
			dropped++
			return
		}
		stock, _ := ParseDecimal(rec[3])
		conv, ok := ParseDecimal(rec[4])
		if !ok {
			conv = 1
		}
		out = append(out, domain.ProductRecord{
			ProductID:      id,
			ProductCode:    rec[1],
			ProductName:    rec[2],
			CurrentStock:   stock,
			UnitConversion: conv,
		})
	})
	return out, dropped, err
}

// ReadPackaging parses the packaging options table.
func ReadPackaging(r io.Reader) ([]domain.PackagingOption, int, error) {
	var (
		out     []domain.PackagingOption
		dropped int
	)
	err := eachRow(r, KindPackaging, func(rec []string) {
		id := suggest.NormalizeProductID(rec[0])
		conv, ok := ParseDecimal(rec[2])
		if id == "" || rec[1] == "" || !ok {
			dropped++
			return
		}
		out = append(out, domain.PackagingOption{ProductID: id, Name: rec[1], UnitConversion: conv})
	})
	return out, dropped, err
}

// ParseDecimal reads numbers written with a decimal comma or point.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDayFirst reads dd/mm/yyyy dates (with or without a clock part).
func ParseDayFirst(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
