package suggest

import (
	"sort"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

// pricedPurchase is a purchase with a valid unit cost.
type pricedPurchase struct {
	domain.PurchaseRecord
	unitCost float64
}

// SelectSuppliers picks one supplier per product.
//
// Purchases on or after max(purchase_date) - recencyDays are "recent". For
// each product with recent purchases, every supplier is represented by its
// latest recent purchase (its vigent price) and the cheapest vigent price
// wins; ties keep the supplier seen first. Products without recent purchases
// fall back to their latest purchase overall, whatever the price.
func (c *Calculator) SelectSuppliers(purchases []domain.PurchaseRecord, recencyDays int) []domain.SupplierQuote {
	if recencyDays <= 0 {
		recencyDays = domain.DefaultSupplierRecencyDays
	}

	priced, _ := pricePurchases(purchases)
	if len(priced) == 0 {
		return []domain.SupplierQuote{}
	}

	var maxDate time.Time
	for _, p := range priced {
		if d := dateOnly(p.PurchaseDate); d.After(maxDate) {
			maxDate = d
		}
	}
	cutoff := maxDate.AddDate(0, 0, -recencyDays)

	keys, groups := groupByProduct(priced, func(p pricedPurchase) string { return p.ProductID })

	picks := runPerKey(c.workers, keys, func(productID string) pricedPurchase {
		rows := groups[productID]

		recent := rows[:0:0]
		for _, r := range rows {
			if !dateOnly(r.PurchaseDate).Before(cutoff) {
				recent = append(recent, r)
			}
		}
		if len(recent) == 0 {
			return latestPurchase(rows)
		}
		return cheapestVigent(recent)
	})

	quotes := make([]domain.SupplierQuote, len(keys))
	for i, productID := range keys {
		quotes[i] = domain.SupplierQuote{
			ProductID:    productID,
			BestSupplier: picks[i].SupplierName,
			BestCost:     picks[i].unitCost,
		}
	}
	return quotes
}

// pricePurchases drops purchases without a date or a computable unit cost.
func pricePurchases(purchases []domain.PurchaseRecord) ([]pricedPurchase, int) {
	priced := make([]pricedPurchase, 0, len(purchases))
	for _, p := range purchases {
		if p.PurchaseDate.IsZero() {
			continue
		}
		cost, ok := p.UnitCost()
		if !ok {
			continue
		}
		priced = append(priced, pricedPurchase{PurchaseRecord: p, unitCost: cost})
	}
	return priced, len(purchases) - len(priced)
}

// latestPurchase returns the most recent row; same-day rows resolve to the
// one that comes last in input order.
func latestPurchase(rows []pricedPurchase) pricedPurchase {
	best := rows[0]
	for _, r := range rows[1:] {
		if !r.PurchaseDate.Before(best.PurchaseDate) {
			best = r
		}
	}
	return best
}

// cheapestVigent keeps each supplier's latest purchase and returns the one
// with the lowest unit cost.
func cheapestVigent(recent []pricedPurchase) pricedPurchase {
	order := make([]string, 0)
	vigent := make(map[string]pricedPurchase)
	for _, r := range recent {
		cur, seen := vigent[r.SupplierName]
		if !seen {
			order = append(order, r.SupplierName)
			vigent[r.SupplierName] = r
			continue
		}
		if !r.PurchaseDate.Before(cur.PurchaseDate) {
			vigent[r.SupplierName] = r
		}
	}

	candidates := make([]pricedPurchase, len(order))
	for i, name := range order {
		candidates[i] = vigent[name]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].unitCost < candidates[j].unitCost
	})
	return candidates[0]
}
