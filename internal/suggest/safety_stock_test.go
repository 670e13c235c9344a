package suggest

import (
	"testing"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinStocksSingleSale(t *testing.T) {
	got := NewCalculator(1).MinStocks([]domain.SalesRecord{sale("P1", 10, 9)}, 3, 60, day(10))

	require.Len(t, got, 1)
	assert.Equal(t, domain.MinStock{ProductID: "P1", MinStock: 27}, got[0])
}

func TestMinStocksAveragesPerRecordNotPerDay(t *testing.T) {
	sales := []domain.SalesRecord{
		sale("P1", 5, 2),
		sale("P1", 5, 4),
		sale("P1", 6, 6),
	}

	got := NewCalculator(1).MinStocks(sales, 2, 60, day(6))
	require.Len(t, got, 1)
	assert.InDelta(t, 8, got[0].MinStock, 1e-9)
}

func TestMinStocksRecencyWindow(t *testing.T) {
	sales := []domain.SalesRecord{
		sale("STALE", 0, 100),
		sale("P1", 0, 100),
		sale("P1", 70, 10),
		sale("EDGE", 10, 5),
	}

	got := NewCalculator(1).MinStocks(sales, 1, 60, day(70))

	require.Len(t, got, 2)
	assert.Equal(t, "EDGE", got[0].ProductID)
	assert.InDelta(t, 5, got[0].MinStock, 1e-9)
	assert.Equal(t, "P1", got[1].ProductID)
	assert.InDelta(t, 10, got[1].MinStock, 1e-9)
}

func TestMinStocksDefaultsRecency(t *testing.T) {
	sales := []domain.SalesRecord{sale("P1", 0, 4)}

	assert.Len(t, NewCalculator(1).MinStocks(sales, 1, 0, day(60)), 1)
	assert.Empty(t, NewCalculator(1).MinStocks(sales, 1, 0, day(61)))
}

func TestMinStocksUsesUTCReferenceDate(t *testing.T) {
	sales := []domain.SalesRecord{sale("EDGE", 10, 5)}
	// 01:00 on day 71 at UTC+3 is still day 70 in UTC.
	y, m, d := day(71).Date()
	reference := time.Date(y, m, d, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	require.True(t, day(70).Add(22*time.Hour).Equal(reference))

	got := NewCalculator(1).MinStocks(sales, 1, 60, reference)
	require.Len(t, got, 1)
	assert.Equal(t, "EDGE", got[0].ProductID)
}
