package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository/sqlstore"
	"github.com/andresuchdata/autopo-suggest/internal/service"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var reference = time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)

type memorySource struct{}

func (memorySource) Kind() string { return "memory" }

func (memorySource) Location() string { return "" }

func (memorySource) Load(ctx context.Context) (*ingest.Dataset, error) {
	var sales []domain.SalesRecord
	for d := 0; d < 10; d++ {
		sales = append(sales, domain.SalesRecord{ProductID: "1", SaleDate: reference.AddDate(0, 0, -d), Quantity: 5})
	}
	return &ingest.Dataset{
		Sales:    sales,
		Products: []domain.ProductRecord{{ProductID: "1", ProductCode: "SKU1", ProductName: "Widget"}},
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := sqlstore.Open("sqlite3", ":memory:", 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	svc := service.NewSuggestionService(suggest.NewSuggester(1), sqlstore.NewSuggestionRepository(db), nil)
	sources := func(kind, location string) (service.Source, error) {
		if kind != "memory" {
			return nil, errors.New("unsupported source " + kind)
		}
		return memorySource{}, nil
	}

	return NewRouter(&Services{
		Suggestions: svc,
		Sources:     sources,
		Defaults:    domain.DefaultSuggestParams(),
		Drive: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}, []string{"*"})
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSuggestionLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/v1/suggestions", map[string]interface{}{
		"source":         "memory",
		"reference_date": "2024-03-30",
		"safety_days":    0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run domain.SuggestionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 0, run.Params.SafetyDays)
	require.Len(t, run.Suggestions, 1)
	assert.Equal(t, 35, run.Suggestions[0].SuggestedPurchase)
	assert.Equal(t, "UNKNOWN", run.Suggestions[0].BestSupplier)

	rec = do(router, http.MethodGet, "/api/v1/suggestions/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/suggestions/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), run.ID)

	rec = do(router, http.MethodGet, "/api/v1/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), run.ID)

	rec = do(router, http.MethodGet, "/api/v1/suggestions/"+run.ID+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SKU1,Widget")

	rec = do(router, http.MethodGet, "/api/v1/suggestions/"+run.ID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionErrors(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/v1/suggestions/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/suggestions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/suggestions", map[string]interface{}{"source": "memory", "forecast_method": "crystal-ball"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/suggestions", map[string]interface{}{"source": "ftp"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/suggestions", map[string]interface{}{"source": "memory", "reference_date": "30/03/2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriveRoutesAreMounted(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/api/drive/files", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
