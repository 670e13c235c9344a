package suggest

import (
	"sort"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

const stageForecaster = "demand_forecaster"

// ForecastOptions selects the forecasting strategy.
type ForecastOptions struct {
	// LookbackDays keeps sales on or after max(sale_date) - LookbackDays.
	// Zero or negative keeps the full history.
	LookbackDays int
	Method       domain.ForecastMethod
	// Window is the number of trailing days read by rolling and weighted.
	Window int
}

// Validate checks the options before any data is touched.
func (o ForecastOptions) Validate() error {
	_, err := o.canonical()
	return err
}

// canonical returns o with the method in its canonical spelling.
func (o ForecastOptions) canonical() (ForecastOptions, error) {
	method, ok := domain.ParseForecastMethod(string(o.Method))
	if !ok {
		return o, domain.NewContractError(stageForecaster, "method", "unknown forecast method "+string(o.Method))
	}
	o.Method = method
	if o.Method.UsesWindow() && o.Window < 1 {
		return o, domain.NewContractError(stageForecaster, "window", "must be at least 1")
	}
	return o, nil
}

// Forecast returns the expected DAILY demand of every product in sales,
// ordered by product id. Products whose history falls entirely outside the
// lookback window get a zero forecast.
func (c *Calculator) Forecast(sales []domain.SalesRecord, opts ForecastOptions) ([]domain.ForecastResult, error) {
	opts, err := opts.canonical()
	if err != nil {
		return nil, err
	}

	kept, _ := cleanSales(sales)
	if len(kept) == 0 {
		return []domain.ForecastResult{}, nil
	}

	var maxDate time.Time
	for _, s := range kept {
		if d := dateOnly(s.SaleDate); d.After(maxDate) {
			maxDate = d
		}
	}
	var cutoff time.Time
	if opts.LookbackDays > 0 {
		cutoff = maxDate.AddDate(0, 0, -opts.LookbackDays)
	}

	keys, groups := groupByProduct(kept, func(s domain.SalesRecord) string { return s.ProductID })

	forecasts := runPerKey(c.workers, keys, func(productID string) float64 {
		series := dailySeries(groups[productID], cutoff)
		return forecastSeries(series, opts)
	})

	results := make([]domain.ForecastResult, len(keys))
	for i, productID := range keys {
		results[i] = domain.ForecastResult{ProductID: productID, Forecast: forecasts[i]}
	}

	return results, nil
}

// cleanSales drops records that cannot enter any stage: missing date,
// negative or non finite quantity.
func cleanSales(sales []domain.SalesRecord) ([]domain.SalesRecord, int) {
	kept := make([]domain.SalesRecord, 0, len(sales))
	for _, s := range sales {
		if s.SaleDate.IsZero() || !isFinite(s.Quantity) || s.Quantity < 0 {
			continue
		}
		kept = append(kept, s)
	}
	return kept, len(sales) - len(kept)
}

// dailySeries sums quantities per calendar day on or after cutoff and
// returns them in ascending date order. Days without sales are not filled.
func dailySeries(rows []domain.SalesRecord, cutoff time.Time) []float64 {
	perDay := make(map[time.Time]float64)
	for _, r := range rows {
		d := dateOnly(r.SaleDate)
		if d.Before(cutoff) {
			continue
		}
		perDay[d] += r.Quantity
	}

	days := make([]time.Time, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]float64, len(days))
	for i, d := range days {
		series[i] = perDay[d]
	}
	return series
}

func forecastSeries(series []float64, opts ForecastOptions) float64 {
	if len(series) == 0 {
		return 0
	}

	var v float64
	switch opts.Method {
	case domain.ForecastRolling:
		v = rollingMean(series, opts.Window)
	case domain.ForecastWeighted:
		v = weightedMean(series, opts.Window)
	case domain.ForecastTrend:
		v = linearTrend(series)
	default:
		v = mean(series)
	}

	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// rollingMean is the last value of a window-day moving average. A series
// shorter than the window has no full window and falls back to the mean.
func rollingMean(series []float64, window int) float64 {
	if len(series) < window {
		return mean(series)
	}
	return mean(series[len(series)-window:])
}

// weightedMean weights the last window days 1 (oldest) .. n (newest).
func weightedMean(series []float64, window int) float64 {
	n := window
	if len(series) < n {
		n = len(series)
	}
	tail := series[len(series)-n:]

	var num, den float64
	for i, x := range tail {
		w := float64(i + 1)
		num += w * x
		den += w
	}
	return num / den
}

// linearTrend fits quantity = a + b*index by least squares and evaluates the
// line one step past the last index.
func linearTrend(series []float64) float64 {
	n := len(series)
	if n == 1 {
		return series[0]
	}

	xMean := float64(n-1) / 2
	yMean := mean(series)

	var sxy, sxx float64
	for i, y := range series {
		dx := float64(i) - xMean
		sxy += dx * (y - yMean)
		sxx += dx * dx
	}
	if sxx == 0 {
		return yMean
	}

	slope := sxy / sxx
	intercept := yMean - slope*xMean
	return intercept + slope*float64(n)
}
