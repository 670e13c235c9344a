package suggest

import (
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

// MinStocks computes the safety stock floor of every product sold within
// recencyDays before reference: the mean quantity per sales record (not per
// day) times coverageDays. Products without recent sales are left out.
func (c *Calculator) MinStocks(sales []domain.SalesRecord, coverageDays, recencyDays int, reference time.Time) []domain.MinStock {
	if recencyDays <= 0 {
		recencyDays = domain.DefaultSafetyRecencyDays
	}
	cutoff := dateOnly(reference).AddDate(0, 0, -recencyDays)

	kept, _ := cleanSales(sales)
	recent := kept[:0:0]
	for _, s := range kept {
		if !dateOnly(s.SaleDate).Before(cutoff) {
			recent = append(recent, s)
		}
	}

	keys, groups := groupByProduct(recent, func(s domain.SalesRecord) string { return s.ProductID })

	floors := runPerKey(c.workers, keys, func(productID string) float64 {
		rows := groups[productID]
		var sum float64
		for _, r := range rows {
			sum += r.Quantity
		}
		return sum / float64(len(rows)) * float64(coverageDays)
	})

	result := make([]domain.MinStock, len(keys))
	for i, productID := range keys {
		result[i] = domain.MinStock{ProductID: productID, MinStock: floors[i]}
	}
	return result
}
