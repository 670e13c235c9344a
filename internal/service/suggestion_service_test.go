package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/export"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/andresuchdata/autopo-suggest/internal/repository/sqlstore"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reference = time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)

type staticSource struct {
	ds  *ingest.Dataset
	err error
}

func (s staticSource) Kind() string { return "static" }

func (s staticSource) Location() string { return "" }

func (s staticSource) Load(ctx context.Context) (*ingest.Dataset, error) {
	return s.ds, s.err
}

func dataset() *ingest.Dataset {
	var sales []domain.SalesRecord
	for d := 0; d < 30; d++ {
		sales = append(sales, domain.SalesRecord{
			ProductID: "0000000001",
			SaleDate:  reference.AddDate(0, 0, -29+d),
			Quantity:  10,
		})
	}
	return &ingest.Dataset{
		Sales: sales,
		Purchases: []domain.PurchaseRecord{{
			ProductID: "0000000001", PurchaseDate: reference.AddDate(0, 0, -5),
			SupplierName: "ACME", QuantityPurchased: 100, TotalAmount: 250,
		}},
		Products:  []domain.ProductRecord{{ProductID: "0000000001", ProductCode: "SKU-1", ProductName: "Widget", CurrentStock: 20}},
		Packaging: []domain.PackagingOption{{ProductID: "0000000001", Name: "CASE", UnitConversion: 50}},
		Dropped:   map[ingest.Kind]int{ingest.KindSales: 2},
	}
}

func params() domain.SuggestParams {
	p := domain.DefaultSuggestParams()
	p.LookbackDays = 30
	p.ReferenceTime = reference
	return p
}

func newService(t *testing.T) (*SuggestionService, *sqlstore.DB) {
	t.Helper()
	db, err := sqlstore.Open("sqlite3", ":memory:", 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	svc := NewSuggestionService(suggest.NewSuggester(2), sqlstore.NewSuggestionRepository(db), nil)
	return svc, db
}

func TestRunPersistsAndExports(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	run, err := svc.Run(ctx, RunRequest{Source: staticSource{ds: dataset()}, Params: params()})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, "static", run.Source)
	assert.Equal(t, 2, run.Stats.DroppedSales)
	require.Len(t, run.Suggestions, 1)
	assert.Equal(t, 2, run.Suggestions[0].SuggestedPurchase)
	assert.InDelta(t, 250, run.Suggestions[0].EstTotalCost, 1e-9)

	stored, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Suggestions, stored.Suggestions)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	data, err := svc.Export(ctx, run.ID, export.FormatCSV)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "SKU-1", records[1][0])
}

func TestRunDefaultsReferenceTimeToNow(t *testing.T) {
	svc := NewSuggestionService(suggest.NewSuggester(1), nil, nil)
	svc.now = func() time.Time { return reference }

	p := params()
	p.ReferenceTime = time.Time{}
	run, err := svc.Run(context.Background(), RunRequest{Source: staticSource{ds: dataset()}, Params: p})
	require.NoError(t, err)
	assert.True(t, run.Params.ReferenceTime.Equal(reference))

	_, err = svc.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoRunStore)
}

func TestRunRecordsFailure(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.Run(ctx, RunRequest{Source: staticSource{err: errors.New("disk on fire")}, Params: params()})
	require.Error(t, err)

	runs, err := sqlstore.NewSuggestionRepository(db).ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "disk on fire")

	_, err = svc.Latest(ctx)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRunRejectsInvalidParams(t *testing.T) {
	svc, _ := newService(t)
	p := params()
	p.ForecastMethod = "oracle"

	_, err := svc.Run(context.Background(), RunRequest{Source: staticSource{ds: dataset()}, Params: p})
	var ce *domain.ContractError
	require.True(t, errors.As(err, &ce))

	_, err = svc.Run(context.Background(), RunRequest{Params: params()})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "source", ce.Field)
}

func TestDirAndDBSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := map[string]string{
		"sales.csv":     "01/03/2024;1;4;40\n02/03/2024;1;6;60\n",
		"purchases.csv": "01/02/2024;1;ACME;10;50\n",
		"products.csv":  "1;SKU1;Widget;0;1\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	dirSource := NewDirSource(dir)
	assert.Equal(t, SourceCSV, dirSource.Kind())
	ds, err := dirSource.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Sales, 2)

	db, err := sqlstore.Open("sqlite3", ":memory:", 2)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, sqlstore.NewSourceRepository(db).ImportDataset(ctx, ds))

	fromDB, err := NewDBSource(sqlstore.NewSourceRepository(db)).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, fromDB.Sales, 2)
	assert.Len(t, fromDB.Purchases, 1)
	assert.Len(t, fromDB.Products, 1)
	assert.Empty(t, fromDB.Packaging)
}

func TestExportRunRequiresCompletedRun(t *testing.T) {
	_, err := ExportRun(&domain.SuggestionRun{ID: "x", Status: domain.RunFailed}, export.FormatCSV)
	assert.Error(t, err)
}

func TestSourcesResolveConfiguredBackends(t *testing.T) {
	sources := &Sources{CSVDir: "/data/in"}

	src, err := sources.New(SourceCSV, "")
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, src.Kind())

	src, err = sources.New(SourceCSV, "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", src.(*DirSource).dir)

	for _, kind := range []string{SourceDB, "", SourceS3, SourceDrive, "ftp"} {
		_, err := sources.New(kind, "")
		assert.Error(t, err, kind)
	}
}
