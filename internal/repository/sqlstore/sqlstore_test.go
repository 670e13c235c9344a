package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite3", ":memory:", 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleDataset() *ingest.Dataset {
	return &ingest.Dataset{
		Sales: []domain.SalesRecord{
			{ProductID: "0000000001", SaleDate: date(2024, 1, 10), Quantity: 3, TotalAmount: 30},
			{ProductID: "0000000001", SaleDate: date(2024, 3, 1), Quantity: 5, TotalAmount: 50},
		},
		Purchases: []domain.PurchaseRecord{
			{ProductID: "0000000001", PurchaseDate: date(2024, 2, 1), SupplierName: "ACME", QuantityPurchased: 10, TotalAmount: 80},
		},
		Products: []domain.ProductRecord{
			{ProductID: "0000000001", ProductCode: "SKU1", ProductName: "Widget", CurrentStock: 4, UnitConversion: 1},
			{ProductID: "0000000001", ProductCode: "DUP", ProductName: "Duplicate", CurrentStock: 99, UnitConversion: 1},
		},
		Packaging: []domain.PackagingOption{
			{ProductID: "0000000001", Name: "CASE", UnitConversion: 24},
			{ProductID: "0000000001", Name: "BOX", UnitConversion: 6},
			{ProductID: "0000000001", Name: "BOX", UnitConversion: 12},
		},
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mssql", "whatever", 1)
	assert.Error(t, err)
}

func TestImportAndLoad(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := NewSourceRepository(db)

	require.NoError(t, src.ImportDataset(ctx, sampleDataset()))

	sales, err := src.LoadSales(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].SaleDate.Equal(date(2024, 1, 10)))

	recent, err := src.LoadSales(ctx, date(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.InDelta(t, 5, recent[0].Quantity, 1e-9)

	purchases, err := src.LoadPurchases(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "ACME", purchases[0].SupplierName)

	products, err := src.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "SKU1", products[0].ProductCode)

	packaging, err := src.LoadPackaging(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PackagingOption{
		{ProductID: "0000000001", Name: "BOX", UnitConversion: 12},
		{ProductID: "0000000001", Name: "CASE", UnitConversion: 24},
	}, packaging)
}

func TestImportReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := NewSourceRepository(db)

	require.NoError(t, src.ImportDataset(ctx, sampleDataset()))
	require.NoError(t, src.ImportDataset(ctx, &ingest.Dataset{}))

	sales, err := src.LoadSales(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSuggestionRepository(db)

	params := domain.DefaultSuggestParams()
	params.ReferenceTime = date(2024, 3, 1)
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	run := &domain.SuggestionRun{
		ID:        "run-1",
		Source:    "csv",
		Location:  "/data/in",
		Status:    domain.RunPending,
		Params:    params,
		StartedAt: started,
	}
	require.NoError(t, repo.CreateRun(ctx, run))

	_, err := repo.LatestRun(ctx)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	run.Stats = domain.RunStats{ProductsEvaluated: 3, Suggested: 2, BelowThreshold: 1}
	run.Suggestions = []domain.PurchaseSuggestion{
		{ProductID: "0000000002", ProductCode: "B", MinStock: 3, ExpectedDemand: 7, SuggestedPurchase: 1,
			Packaging: "CASE", PackFactor: 12, TotalUnits: 12, BestSupplier: "ACME", BestCost: 96, EstTotalCost: 96, Quoted: true},
		{ProductID: "0000000001", ProductCode: "A", SuggestedPurchase: 5, Packaging: "UND", PackFactor: 1,
			TotalUnits: 5, BestSupplier: "UNKNOWN"},
	}
	require.NoError(t, repo.CompleteRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)
	assert.Equal(t, "csv:/data/in", got.SourceKey())
	assert.Equal(t, run.Stats, got.Stats)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.Params.ReferenceTime.Equal(params.ReferenceTime))
	assert.Equal(t, params.ForecastMethod, got.Params.ForecastMethod)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, run.Suggestions, got.Suggestions)

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].Suggestions)
}

func TestFailRun(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSuggestionRepository(db)

	run := &domain.SuggestionRun{ID: "run-2", Source: "csv", Status: domain.RunPending, StartedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateRun(ctx, run))
	require.NoError(t, repo.FailRun(ctx, "run-2", errors.New("boom")))

	got, err := repo.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Empty(t, got.Suggestions)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := NewSuggestionRepository(newTestDB(t)).GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
