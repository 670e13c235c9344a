package suggest

import (
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func sale(id string, d int, qty float64) domain.SalesRecord {
	return domain.SalesRecord{ProductID: id, SaleDate: day(d), Quantity: qty}
}

func purchase(id, supplier string, d int, qty, total float64) domain.PurchaseRecord {
	return domain.PurchaseRecord{
		ProductID:         id,
		PurchaseDate:      day(d),
		SupplierName:      supplier,
		QuantityPurchased: qty,
		TotalAmount:       total,
	}
}
