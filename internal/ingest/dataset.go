package ingest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/rs/zerolog/log"
)

// FileNames maps every table to its file inside a snapshot directory.
var FileNames = map[Kind]string{
	KindSales:     "sales.csv",
	KindPurchases: "purchases.csv",
	KindProducts:  "products.csv",
	KindPackaging: "packaging.csv",
}

// Dataset is one snapshot of the four input tables.
type Dataset struct {
	Sales     []domain.SalesRecord
	Purchases []domain.PurchaseRecord
	Products  []domain.ProductRecord
	Packaging []domain.PackagingOption
	// Dropped counts unparsable rows per table.
	Dropped map[Kind]int
}

// Input exposes the dataset to the suggestion engine; stock comes from the
// product master.
func (d *Dataset) Input() suggest.Input {
	return suggest.Input{
		Sales:     d.Sales,
		Purchases: d.Purchases,
		Products:  d.Products,
		Packaging: d.Packaging,
	}
}

// LoadDir reads a snapshot directory. The packaging file is optional.
func LoadDir(dir string) (*Dataset, error) {
	ds, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	return ds, nil
}

// LoadFS reads a snapshot from fsys using FileNames.
func LoadFS(fsys fs.FS) (*Dataset, error) {
	ds := &Dataset{Dropped: make(map[Kind]int)}

	loaders := []struct {
		kind     Kind
		optional bool
		read     func(io.Reader) (int, error)
	}{
		{KindSales, false, func(r io.Reader) (n int, err error) {
			ds.Sales, n, err = ReadSales(r)
			return
		}},
		{KindPurchases, false, func(r io.Reader) (n int, err error) {
			ds.Purchases, n, err = ReadPurchases(r)
			return
		}},
		{KindProducts, false, func(r io.Reader) (n int, err error) {
			ds.Products, n, err = ReadProducts(r)
			return
		}},
		{KindPackaging, true, func(r io.Reader) (n int, err error) {
			ds.Packaging, n, err = ReadPackaging(r)
			return
		}},
	}

	for _, l := range loaders {
		name := FileNames[l.kind]
		f, err := fsys.Open(name)
		if err != nil {
			if l.optional && errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("file", name).Msg("optional input missing")
				continue
			}
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		dropped, err := l.read(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		ds.Dropped[l.kind] = dropped
		if dropped > 0 {
			log.Warn().Str("file", name).Int("dropped", dropped).Msg("dropped unparsable rows")
		}
	}

	return ds, nil
}
