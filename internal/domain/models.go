// internal/domain/models.go
package domain

import (
	"math"
	"time"
)

// SalesRecord is one sales line already parsed by an ingestion adapter.
type SalesRecord struct {
	ProductID   string    `json:"product_id" db:"product_id"`
	SaleDate    time.Time `json:"sale_date" db:"sale_date"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	TotalAmount float64   `json:"total_amount" db:"total_amount"`
}

// PurchaseRecord is one historical purchase line.
type PurchaseRecord struct {
	ProductID         string    `json:"product_id" db:"product_id"`
	PurchaseDate      time.Time `json:"purchase_date" db:"purchase_date"`
	SupplierName      string    `json:"supplier_name" db:"supplier_name"`
	QuantityPurchased float64   `json:"quantity_purchased" db:"quantity_purchased"`
	TotalAmount       float64   `json:"total_amount" db:"total_amount"`
}

// UnitCost returns TotalAmount / QuantityPurchased. ok is false when the
// quantity is not strictly positive or the result is not a finite number.
func (p PurchaseRecord) UnitCost() (cost float64, ok bool) {
	if !(p.QuantityPurchased > 0) {
		return 0, false
	}
	cost = p.TotalAmount / p.QuantityPurchased
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, false
	}
	return cost, true
}

// ProductRecord is the product master row.
type ProductRecord struct {
	ProductID      string  `json:"product_id" db:"product_id"`
	ProductCode    string  `json:"product_code" db:"product_code"`
	ProductName    string  `json:"product_name" db:"product_name"`
	CurrentStock   float64 `json:"current_stock" db:"current_stock"`
	UnitConversion float64 `json:"unit_conversion" db:"unit_conversion"`
}

// StockLevel is the on-hand quantity of a product.
type StockLevel struct {
	ProductID    string  `json:"product_id" db:"product_id"`
	CurrentStock float64 `json:"current_stock" db:"current_stock"`
}

// PackagingOption is a purchasable pack of a product.
type PackagingOption struct {
	ProductID      string  `json:"product_id" db:"product_id"`
	Name           string  `json:"name" db:"name"`
	UnitConversion float64 `json:"unit_conversion" db:"unit_conversion"`
}

// ForecastResult carries a daily demand rate for a product.
type ForecastResult struct {
	ProductID string  `json:"product_id"`
	Forecast  float64 `json:"forecast"`
}

// MinStock is the safety stock floor of a product, in units.
type MinStock struct {
	ProductID string  `json:"product_id"`
	MinStock  float64 `json:"min_stock"`
}

// SupplierQuote is the preferred supplier of a product and its unit cost.
type SupplierQuote struct {
	ProductID    string  `json:"product_id"`
	BestSupplier string  `json:"best_supplier"`
	BestCost     float64 `json:"best_cost"`
}

// PurchaseSuggestion is one row of the final recommendation table.
// BestCost is per pack. Cost fields are zero when Quoted is false.
type PurchaseSuggestion struct {
	ProductID         string  `json:"product_id" db:"product_id"`
	ProductCode       string  `json:"product_code" db:"product_code"`
	ProductName       string  `json:"product_name" db:"product_name"`
	CurrentStock      float64 `json:"current_stock" db:"current_stock"`
	MinStock          int     `json:"min_stock" db:"min_stock"`
	ExpectedDemand    int     `json:"expected_demand" db:"expected_demand"`
	SuggestedPurchase int     `json:"suggested_purchase" db:"suggested_purchase"`
	Packaging         string  `json:"packaging" db:"packaging"`
	PackFactor        float64 `json:"pack_factor" db:"pack_factor"`
	TotalUnits        float64 `json:"total_units" db:"total_units"`
	BestSupplier      string  `json:"best_supplier" db:"best_supplier"`
	BestCost          float64 `json:"best_cost" db:"best_cost"`
	EstTotalCost      float64 `json:"est_total_cost" db:"est_total_cost"`
	Quoted            bool    `json:"quoted" db:"quoted"`
}

// StockFromProducts builds the stock table from the product master.
func StockFromProducts(products []ProductRecord) []StockLevel {
	stock := make([]StockLevel, 0, len(products))
	for _, p := range products {
		stock = append(stock, StockLevel{ProductID: p.ProductID, CurrentStock: p.CurrentStock})
	}
	return stock
}
