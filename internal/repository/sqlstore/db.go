package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const defaultMaxConns = 10

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens a connection pool for cfg.Driver (postgres, pgx or sqlite3).
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	return Open(cfg.Driver, cfg.ConnString(), cfg.MaxConns)
}

// Open connects to dsn with driver. maxConns bounds both the pool and the
// number of concurrent operations.
func Open(driver, dsn string, maxConns int) (*DB, error) {
	switch driver {
	case "postgres", "pgx", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	// Configure connection pool
	if driver == "sqlite3" {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(int64(maxConns)),
	}, nil
}

func (db *DB) acquire(ctx context.Context) (func(), error) {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("could not acquire semaphore: %w", err)
	}
	return func() { db.sem.Release(1) }, nil
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// selectContext runs a rebound query under the semaphore.
func (db *DB) selectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return db.SelectContext(ctx, dest, db.Rebind(query), args...)
}

func (db *DB) getContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return db.GetContext(ctx, dest, db.Rebind(query), args...)
}
