package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *sourceRepository {
	return &sourceRepository{db: db}
}

var _ repository.SourceRepository = (*sourceRepository)(nil)

func (r *sourceRepository) LoadSales(ctx context.Context, since time.Time) ([]domain.SalesRecord, error) {
	query := `
		SELECT product_id, sale_date, quantity, total_amount
		FROM sales`
	var args []interface{}
	if !since.IsZero() {
		query += ` WHERE sale_date >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY sale_date, product_id`

	var rows []domain.SalesRecord
	if err := r.db.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return rows, nil
}

func (r *sourceRepository) LoadPurchases(ctx context.Context, since time.Time) ([]domain.PurchaseRecord, error) {
	query := `
		SELECT product_id, purchase_date, supplier_name, quantity_purchased, total_amount
		FROM purchases`
	var args []interface{}
	if !since.IsZero() {
		query += ` WHERE purchase_date >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY purchase_date, product_id`

	var rows []domain.PurchaseRecord
	if err := r.db.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	return rows, nil
}

func (r *sourceRepository) LoadProducts(ctx context.Context) ([]domain.ProductRecord, error) {
	query := `
		SELECT product_id, product_code, product_name, current_stock, unit_conversion
		FROM products
		ORDER BY product_id`

	var rows []domain.ProductRecord
	if err := r.db.selectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return rows, nil
}

func (r *sourceRepository) LoadPackaging(ctx context.Context) ([]domain.PackagingOption, error) {
	query := `
		SELECT product_id, name, unit_conversion
		FROM packaging
		ORDER BY product_id, unit_conversion`

	var rows []domain.PackagingOption
	if err := r.db.selectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load packaging: %w", err)
	}
	return rows, nil
}

// ImportDataset replaces the stored snapshot with ds in one transaction.
func (r *sourceRepository) ImportDataset(ctx context.Context, ds *ingest.Dataset) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"sales", "purchases", "products", "packaging"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := insertRows(ctx, tx,
			`INSERT INTO sales (product_id, sale_date, quantity, total_amount) VALUES (?, ?, ?, ?)`,
			len(ds.Sales), func(i int) []interface{} {
				s := ds.Sales[i]
				return []interface{}{s.ProductID, s.SaleDate, s.Quantity, s.TotalAmount}
			}); err != nil {
			return fmt.Errorf("failed to insert sales: %w", err)
		}

		if err := insertRows(ctx, tx,
			`INSERT INTO purchases (product_id, purchase_date, supplier_name, quantity_purchased, total_amount) VALUES (?, ?, ?, ?, ?)`,
			len(ds.Purchases), func(i int) []interface{} {
				p := ds.Purchases[i]
				return []interface{}{p.ProductID, p.PurchaseDate, p.SupplierName, p.QuantityPurchased, p.TotalAmount}
			}); err != nil {
			return fmt.Errorf("failed to insert purchases: %w", err)
		}

		products := dedupeProducts(ds.Products)
		if err := insertRows(ctx, tx,
			`INSERT INTO products (product_id, product_code, product_name, current_stock, unit_conversion) VALUES (?, ?, ?, ?, ?)`,
			len(products), func(i int) []interface{} {
				p := products[i]
				return []interface{}{p.ProductID, p.ProductCode, p.ProductName, p.CurrentStock, p.UnitConversion}
			}); err != nil {
			return fmt.Errorf("failed to insert products: %w", err)
		}

		packaging := dedupePackaging(ds.Packaging)
		if err := insertRows(ctx, tx,
			`INSERT INTO packaging (product_id, name, unit_conversion) VALUES (?, ?, ?)`,
			len(packaging), func(i int) []interface{} {
				p := packaging[i]
				return []interface{}{p.ProductID, p.Name, p.UnitConversion}
			}); err != nil {
			return fmt.Errorf("failed to insert packaging: %w", err)
		}

		log.Info().
			Int("sales", len(ds.Sales)).
			Int("purchases", len(ds.Purchases)).
			Int("products", len(products)).
			Int("packaging", len(packaging)).
			Msg("dataset imported")
		return nil
	})
}

func insertRows(ctx context.Context, tx *sqlx.Tx, query string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// dedupeProducts keeps the first row of every product id.
func dedupeProducts(in []domain.ProductRecord) []domain.ProductRecord {
	seen := make(map[string]bool, len(in))
	out := make([]domain.ProductRecord, 0, len(in))
	for _, p := range in {
		if seen[p.ProductID] {
			continue
		}
		seen[p.ProductID] = true
		out = append(out, p)
	}
	return out
}

// dedupePackaging keeps the last definition of every (product, pack name).
func dedupePackaging(in []domain.PackagingOption) []domain.PackagingOption {
	index := make(map[[2]string]int, len(in))
	out := make([]domain.PackagingOption, 0, len(in))
	for _, p := range in {
		key := [2]string{p.ProductID, p.Name}
		if i, ok := index[key]; ok {
			out[i] = p
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}
