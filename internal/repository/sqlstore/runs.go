package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/jmoiron/sqlx"
)

type suggestionRepository struct {
	db *DB
}

func NewSuggestionRepository(db *DB) *suggestionRepository {
	return &suggestionRepository{db: db}
}

var _ repository.SuggestionRepository = (*suggestionRepository)(nil)

type runRow struct {
	ID           string       `db:"id"`
	Source       string       `db:"source"`
	Location     string       `db:"location"`
	Status       string       `db:"status"`
	Params       string       `db:"params"`
	Stats        string       `db:"stats"`
	RowCount     int          `db:"row_count"`
	ErrorMessage string       `db:"error_message"`
	StartedAt    time.Time    `db:"started_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
}

const runColumns = `id, source, location, status, params, stats, row_count, error_message, started_at, completed_at`

func (r runRow) toDomain() (*domain.SuggestionRun, error) {
	run := &domain.SuggestionRun{
		ID:           r.ID,
		Source:       r.Source,
		Location:     r.Location,
		Status:       domain.RunStatus(r.Status),
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time.UTC()
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(r.Params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params of run %s: %w", r.ID, err)
	}
	if r.Stats != "" {
		if err := json.Unmarshal([]byte(r.Stats), &run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of run %s: %w", r.ID, err)
		}
	}
	return run, nil
}

func (r *suggestionRepository) CreateRun(ctx context.Context, run *domain.SuggestionRun) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO suggestion_runs (id, source, location, status, params, stats, row_count, error_message, started_at)
			VALUES (?, ?, ?, ?, ?, '{}', 0, '', ?)`)
		if _, err := tx.ExecContext(ctx, query, run.ID, run.Source, run.Location, string(run.Status), string(params), run.StartedAt); err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		return nil
	})
}

// CompleteRun stores the suggestions of run and marks it completed.
func (r *suggestionRepository) CompleteRun(ctx context.Context, run *domain.SuggestionRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	completedAt := time.Now().UTC()
	if run.CompletedAt != nil {
		completedAt = *run.CompletedAt
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM purchase_suggestions WHERE run_id = ?`), run.ID); err != nil {
			return fmt.Errorf("failed to clear suggestions: %w", err)
		}

		err := insertRows(ctx, tx, `
			INSERT INTO purchase_suggestions (
				run_id, position, product_id, product_code, product_name, current_stock,
				min_stock, expected_demand, suggested_purchase, packaging, pack_factor,
				total_units, best_supplier, best_cost, est_total_cost, quoted
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(run.Suggestions), func(i int) []interface{} {
				s := run.Suggestions[i]
				return []interface{}{
					run.ID, i, s.ProductID, s.ProductCode, s.ProductName, s.CurrentStock,
					s.MinStock, s.ExpectedDemand, s.SuggestedPurchase, s.Packaging, s.PackFactor,
					s.TotalUnits, s.BestSupplier, s.BestCost, s.EstTotalCost, s.Quoted,
				}
			})
		if err != nil {
			return fmt.Errorf("failed to insert suggestions: %w", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE suggestion_runs
			SET status = ?, stats = ?, row_count = ?, completed_at = ?
			WHERE id = ?`),
			string(domain.RunCompleted), string(stats), len(run.Suggestions), completedAt, run.ID)
		if err != nil {
			return fmt.Errorf("failed to complete run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s: %w", run.ID, repository.ErrNotFound)
		}
		return nil
	})
}

func (r *suggestionRepository) FailRun(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE suggestion_runs
			SET status = ?, error_message = ?, completed_at = ?
			WHERE id = ?`),
			string(domain.RunFailed), msg, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to mark run failed: %w", err)
		}
		return nil
	})
}

// GetRun returns a run with its suggestions in stored order.
func (r *suggestionRepository) GetRun(ctx context.Context, id string) (*domain.SuggestionRun, error) {
	var row runRow
	err := r.db.getContext(ctx, &row, `SELECT `+runColumns+` FROM suggestion_runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r.withSuggestions(ctx, row)
}

// LatestRun returns the most recently started completed run.
func (r *suggestionRepository) LatestRun(ctx context.Context) (*domain.SuggestionRun, error) {
	var row runRow
	err := r.db.getContext(ctx, &row, `
		SELECT `+runColumns+`
		FROM suggestion_runs
		WHERE status = ?
		ORDER BY started_at DESC
		LIMIT 1`, string(domain.RunCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return r.withSuggestions(ctx, row)
}

// ListRuns returns run headers, newest first, without their rows.
func (r *suggestionRepository) ListRuns(ctx context.Context, limit int) ([]domain.SuggestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := r.db.selectContext(ctx, &rows, `
		SELECT `+runColumns+`
		FROM suggestion_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]domain.SuggestionRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (r *suggestionRepository) withSuggestions(ctx context.Context, row runRow) (*domain.SuggestionRun, error) {
	run, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	suggestions := []domain.PurchaseSuggestion{}
	err = r.db.selectContext(ctx, &suggestions, `
		SELECT product_id, product_code, product_name, current_stock, min_stock,
			expected_demand, suggested_purchase, packaging, pack_factor, total_units,
			best_supplier, best_cost, est_total_cost, quoted
		FROM purchase_suggestions
		WHERE run_id = ?
		ORDER BY position`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions of run %s: %w", run.ID, err)
	}
	run.Suggestions = suggestions
	return run, nil
}
