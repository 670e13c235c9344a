package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written in the subset of SQL shared by Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sales (
		product_id   VARCHAR(32) NOT NULL,
		sale_date    DATE NOT NULL,
		quantity     DOUBLE PRECISION NOT NULL,
		total_amount DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (sale_date)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		product_id         VARCHAR(32) NOT NULL,
		purchase_date      DATE NOT NULL,
		supplier_name      VARCHAR(255) NOT NULL DEFAULT '',
		quantity_purchased DOUBLE PRECISION NOT NULL,
		total_amount       DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases (purchase_date)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id      VARCHAR(32) PRIMARY KEY,
		product_code    VARCHAR(64) NOT NULL DEFAULT '',
		product_name    VARCHAR(255) NOT NULL DEFAULT '',
		current_stock   DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit_conversion DOUBLE PRECISION NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS packaging (
		product_id      VARCHAR(32) NOT NULL,
		name            VARCHAR(64) NOT NULL,
		unit_conversion DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (product_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS suggestion_runs (
		id            VARCHAR(36) PRIMARY KEY,
		source        VARCHAR(32) NOT NULL,
		location      TEXT NOT NULL DEFAULT '',
		status        VARCHAR(16) NOT NULL,
		params        TEXT NOT NULL,
		stats         TEXT NOT NULL DEFAULT '{}',
		row_count     INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMP NOT NULL,
		completed_at  TIMESTAMP NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_suggestion_runs_started ON suggestion_runs (started_at)`,
	`CREATE TABLE IF NOT EXISTS purchase_suggestions (
		run_id             VARCHAR(36) NOT NULL REFERENCES suggestion_runs (id) ON DELETE CASCADE,
		position           INTEGER NOT NULL,
		product_id         VARCHAR(32) NOT NULL,
		product_code       VARCHAR(64) NOT NULL DEFAULT '',
		product_name       VARCHAR(255) NOT NULL DEFAULT '',
		current_stock      DOUBLE PRECISION NOT NULL,
		min_stock          INTEGER NOT NULL,
		expected_demand    INTEGER NOT NULL,
		suggested_purchase INTEGER NOT NULL,
		packaging          VARCHAR(64) NOT NULL,
		pack_factor        DOUBLE PRECISION NOT NULL,
		total_units        DOUBLE PRECISION NOT NULL,
		best_supplier      VARCHAR(64) NOT NULL,
		best_cost          DOUBLE PRECISION NOT NULL,
		est_total_cost     DOUBLE PRECISION NOT NULL,
		quoted             BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, product_id)
	)`,
}

// Migrate creates the tables when they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
