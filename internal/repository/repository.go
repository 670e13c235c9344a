// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// SourceRepository reads the input tables of a suggestion run. A zero since
// returns the full history.
type SourceRepository interface {
	LoadSales(ctx context.Context, since time.Time) ([]domain.SalesRecord, error)
	LoadPurchases(ctx context.Context, since time.Time) ([]domain.PurchaseRecord, error)
	LoadProducts(ctx context.Context) ([]domain.ProductRecord, error)
	LoadPackaging(ctx context.Context) ([]domain.PackagingOption, error)
}

// SuggestionRepository persists suggestion runs and their rows.
type SuggestionRepository interface {
	CreateRun(ctx context.Context, run *domain.SuggestionRun) error
	CompleteRun(ctx context.Context, run *domain.SuggestionRun) error
	FailRun(ctx context.Context, id string, cause error) error
	GetRun(ctx context.Context, id string) (*domain.SuggestionRun, error)
	LatestRun(ctx context.Context) (*domain.SuggestionRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.SuggestionRun, error)
}
