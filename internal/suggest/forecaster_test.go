package suggest

import (
	"errors"
	"testing"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastMethods(t *testing.T) {
	// daily totals 2, 4, 6, 8 for one product
	sales := []domain.SalesRecord{
		sale("P1", 0, 2),
		sale("P1", 1, 1), sale("P1", 1, 3),
		sale("P1", 2, 6),
		sale("P1", 3, 8),
	}

	tests := []struct {
		name   string
		method domain.ForecastMethod
		window int
		want   float64
	}{
		{"mean", domain.ForecastMean, 0, 5},
		{"rolling window 2", domain.ForecastRolling, 2, 7},
		{"rolling window larger than history", domain.ForecastRolling, 7, 5},
		{"weighted window 2", domain.ForecastWeighted, 2, (6*1 + 8*2) / 3.0},
		{"weighted full history", domain.ForecastWeighted, 10, (2*1 + 4*2 + 6*3 + 8*4) / 10.0},
		{"trend", domain.ForecastTrend, 0, 10},
		{"rolling mixed case", "Rolling", 2, 7},
		{"weighted upper case", "WEIGHTED", 2, (6*1 + 8*2) / 3.0},
		{"trend upper case", "TREND", 0, 10},
	}

	calc := NewCalculator(2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Forecast(sales, ForecastOptions{Method: tt.method, Window: tt.window})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "P1", got[0].ProductID)
			assert.InDelta(t, tt.want, got[0].Forecast, 1e-9)
		})
	}
}

func TestForecastLookbackKeepsEveryProduct(t *testing.T) {
	sales := []domain.SalesRecord{
		sale("OLD", 0, 50),
		sale("NEW", 95, 4),
		sale("NEW", 100, 6),
	}

	got, err := NewCalculator(1).Forecast(sales, ForecastOptions{LookbackDays: 30, Method: domain.ForecastMean})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.ForecastResult{ProductID: "NEW", Forecast: 5}, got[0])
	assert.Equal(t, domain.ForecastResult{ProductID: "OLD", Forecast: 0}, got[1])
}

func TestForecastTrendIsClampedAtZero(t *testing.T) {
	sales := []domain.SalesRecord{sale("P1", 0, 9), sale("P1", 1, 5), sale("P1", 2, 1)}

	got, err := NewCalculator(1).Forecast(sales, ForecastOptions{Method: domain.ForecastTrend})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Forecast)
}

func TestForecastSinglePointTrendIsFlat(t *testing.T) {
	got, err := NewCalculator(1).Forecast([]domain.SalesRecord{sale("P1", 0, 7)}, ForecastOptions{Method: domain.ForecastTrend})
	require.NoError(t, err)
	assert.InDelta(t, 7, got[0].Forecast, 1e-9)
}

func TestForecastDropsBadRecords(t *testing.T) {
	sales := []domain.SalesRecord{
		sale("P1", 0, 4),
		sale("P1", 1, -3),
		{ProductID: "P1", Quantity: 100},
	}

	got, err := NewCalculator(1).Forecast(sales, ForecastOptions{Method: domain.ForecastMean})
	require.NoError(t, err)
	assert.InDelta(t, 4, got[0].Forecast, 1e-9)
}

func TestForecastEmptyInput(t *testing.T) {
	got, err := NewCalculator(1).Forecast(nil, ForecastOptions{Method: domain.ForecastMean})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestForecastRejectsInvalidOptions(t *testing.T) {
	calc := NewCalculator(1)

	_, err := calc.Forecast(nil, ForecastOptions{Method: "arima"})
	var ce *domain.ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "demand_forecaster", ce.Stage)
	assert.Equal(t, "method", ce.Field)

	_, err = calc.Forecast(nil, ForecastOptions{Method: domain.ForecastRolling, Window: 0})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "window", ce.Field)

	err = ForecastOptions{Method: "Rolling", Window: 0}.Validate()
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "window", ce.Field)
}

func TestForecastIsDeterministicAcrossWorkerCounts(t *testing.T) {
	var sales []domain.SalesRecord
	for p := 0; p < 40; p++ {
		id := NormalizeProductID(string(rune('A'+p%26)) + string(rune('a'+p/26)))
		for d := 0; d < 20; d++ {
			sales = append(sales, sale(id, d, float64((p*d)%11)))
		}
	}
	opts := ForecastOptions{Method: domain.ForecastWeighted, Window: 5}

	serial, err := NewCalculator(1).Forecast(sales, opts)
	require.NoError(t, err)
	parallel, err := NewCalculator(8).Forecast(sales, opts)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}
