package suggest

import (
	"math"
	"strconv"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const stageOrchestrator = "orchestrator"

// Input is the snapshot a suggestion run reads. Stock may be nil, in which
// case current stock is taken from Products.
type Input struct {
	Sales     []domain.SalesRecord
	Purchases []domain.PurchaseRecord
	Stock     []domain.StockLevel
	Products  []domain.ProductRecord
	Packaging []domain.PackagingOption
}

// Result is the suggestion table plus run statistics.
type Result struct {
	Suggestions []domain.PurchaseSuggestion
	Stats       domain.RunStats
}

// Suggester joins forecast, safety stock, supplier quotes and packaging into
// the purchase suggestion table.
type Suggester struct {
	calc *Calculator
}

// NewSuggester creates a Suggester whose per-product stages use workers
// goroutines (< 1 means GOMAXPROCS).
func NewSuggester(workers int) *Suggester {
	return &Suggester{calc: NewCalculator(workers)}
}

// Suggest computes the purchase suggestions for the given snapshot. It never
// mutates in; the same input and params always produce the same output.
func (s *Suggester) Suggest(in Input, params domain.SuggestParams) (*Result, error) {
	params = WithDefaults(params)
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	snap, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	var stats domain.RunStats
	_, stats.DroppedSales = cleanSales(snap.Sales)
	_, stats.DroppedPurchases = pricePurchases(snap.Purchases)

	var (
		forecasts []domain.ForecastResult
		floors    []domain.MinStock
		quotes    []domain.SupplierQuote
		g         errgroup.Group
	)
	g.Go(func() error {
		var err error
		forecasts, err = s.calc.Forecast(snap.Sales, forecastOptions(params))
		return err
	})
	g.Go(func() error {
		floors = s.calc.MinStocks(snap.Sales, params.SafetyDays, params.SafetyRecencyDays, params.ReferenceTime)
		return nil
	})
	g.Go(func() error {
		quotes = s.calc.SelectSuppliers(snap.Purchases, params.SupplierRecencyDays)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stockByID := make(map[string]float64, len(snap.Stock))
	for _, st := range snap.Stock {
		stockByID[st.ProductID] += st.CurrentStock
	}
	floorByID := make(map[string]float64, len(floors))
	for _, f := range floors {
		floorByID[f.ProductID] = f.MinStock
	}
	quoteByID := make(map[string]domain.SupplierQuote, len(quotes))
	for _, q := range quotes {
		quoteByID[q.ProductID] = q
	}
	productByID := make(map[string]domain.ProductRecord, len(snap.Products))
	for _, p := range snap.Products {
		if _, dup := productByID[p.ProductID]; !dup {
			productByID[p.ProductID] = p
		}
	}
	packager := NewPackager(snap.Packaging)

	suggestions := make([]domain.PurchaseSuggestion, 0, len(forecasts))
	for _, f := range forecasts {
		stats.ProductsEvaluated++

		expected := f.Forecast * float64(params.ForecastPeriodDays)
		currentStock := stockByID[f.ProductID]
		minStock := floorByID[f.ProductID]

		rawSuggested := 0
		if deficit := expected + minStock - currentStock; deficit > 0 {
			rawSuggested = int(math.Ceil(deficit))
		}

		row := domain.PurchaseSuggestion{
			ProductID:      f.ProductID,
			CurrentStock:   currentStock,
			MinStock:       int(math.Ceil(minStock)),
			ExpectedDemand: int(math.Ceil(expected)),
			BestSupplier:   UnknownSupplier,
		}

		quote, quoted := quoteByID[f.ProductID]
		if quoted {
			if name := TruncateName(quote.BestSupplier, SupplierNameMaxLen); name != "" {
				row.BestSupplier = name
			}
			row.Quoted = true
		}

		if p, ok := productByID[f.ProductID]; ok {
			row.ProductCode = p.ProductCode
			row.ProductName = p.ProductName
		}

		pack := packager.Convert(float64(rawSuggested), f.ProductID)
		row.SuggestedPurchase = pack.PackCount
		row.Packaging = pack.PackName
		row.PackFactor = pack.PackSize
		row.TotalUnits = float64(pack.PackCount) * pack.PackSize

		if quoted {
			row.BestCost = roundMoney(quote.BestCost * pack.PackSize)
			row.EstTotalCost = roundMoney(row.BestCost * float64(pack.PackCount))
		}

		if row.TotalUnits < params.TotalUnitsThreshold {
			stats.BelowThreshold++
			continue
		}
		if !quoted {
			stats.Unquoted++
		}
		suggestions = append(suggestions, row)
	}
	stats.Suggested = len(suggestions)

	log.Debug().
		Int("products", stats.ProductsEvaluated).
		Int("suggested", stats.Suggested).
		Int("below_threshold", stats.BelowThreshold).
		Int("dropped_sales", stats.DroppedSales).
		Int("dropped_purchases", stats.DroppedPurchases).
		Msg("purchase suggestions computed")

	return &Result{Suggestions: suggestions, Stats: stats}, nil
}

// WithDefaults fills the unset method, window and recency windows and
// canonicalises the method name. Coverage days and the threshold are taken as
// given since zero is meaningful there.
func WithDefaults(p domain.SuggestParams) domain.SuggestParams {
	d := domain.DefaultSuggestParams()
	if p.ForecastMethod == "" {
		p.ForecastMethod = d.ForecastMethod
	} else if m, ok := domain.ParseForecastMethod(string(p.ForecastMethod)); ok {
		p.ForecastMethod = m
	}
	if p.ForecastWindow == 0 {
		p.ForecastWindow = d.ForecastWindow
	}
	if p.SafetyRecencyDays <= 0 {
		p.SafetyRecencyDays = d.SafetyRecencyDays
	}
	if p.SupplierRecencyDays <= 0 {
		p.SupplierRecencyDays = d.SupplierRecencyDays
	}
	return p
}

// ValidateParams rejects parameters no run can be computed with.
func ValidateParams(p domain.SuggestParams) error {
	if p.ReferenceTime.IsZero() {
		return domain.NewContractError(stageOrchestrator, "reference_time", "")
	}
	if p.ForecastPeriodDays < 0 {
		return domain.NewContractError(stageOrchestrator, "forecast_period_days", "must not be negative")
	}
	if p.SafetyDays < 0 {
		return domain.NewContractError(stageOrchestrator, "safety_days", "must not be negative")
	}
	if !isFinite(p.TotalUnitsThreshold) || p.TotalUnitsThreshold < 0 {
		return domain.NewContractError(stageOrchestrator, "total_units_threshold", "must be a non-negative number")
	}
	return forecastOptions(p).Validate()
}

func forecastOptions(p domain.SuggestParams) ForecastOptions {
	return ForecastOptions{
		LookbackDays: p.LookbackDays,
		Method:       p.ForecastMethod,
		Window:       p.ForecastWindow,
	}
}

// normalizeInput returns a copy of in with every product id in canonical
// form. A record without a product id breaks the input contract.
func normalizeInput(in Input) (Input, error) {
	out := Input{
		Sales:     make([]domain.SalesRecord, len(in.Sales)),
		Purchases: make([]domain.PurchaseRecord, len(in.Purchases)),
		Products:  make([]domain.ProductRecord, len(in.Products)),
		Packaging: make([]domain.PackagingOption, len(in.Packaging)),
	}

	for i, s := range in.Sales {
		if s.ProductID = NormalizeProductID(s.ProductID); s.ProductID == "" {
			return Input{}, missingProductID(stageForecaster, "sales", i)
		}
		out.Sales[i] = s
	}
	for i, p := range in.Purchases {
		if p.ProductID = NormalizeProductID(p.ProductID); p.ProductID == "" {
			return Input{}, missingProductID("supplier_selector", "purchases", i)
		}
		out.Purchases[i] = p
	}
	for i, p := range in.Products {
		if p.ProductID = NormalizeProductID(p.ProductID); p.ProductID == "" {
			return Input{}, missingProductID(stageOrchestrator, "products", i)
		}
		out.Products[i] = p
	}
	for i, p := range in.Packaging {
		if p.ProductID = NormalizeProductID(p.ProductID); p.ProductID == "" {
			return Input{}, missingProductID("packaging_converter", "packaging", i)
		}
		out.Packaging[i] = p
	}

	stock := in.Stock
	if stock == nil {
		stock = domain.StockFromProducts(in.Products)
	}
	out.Stock = make([]domain.StockLevel, len(stock))
	for i, st := range stock {
		if st.ProductID = NormalizeProductID(st.ProductID); st.ProductID == "" {
			return Input{}, missingProductID(stageOrchestrator, "stock", i)
		}
		out.Stock[i] = st
	}

	return out, nil
}

func missingProductID(stage, table string, row int) error {
	return &domain.ContractError{
		Stage:  stage,
		Field:  "product_id",
		Detail: "empty in " + table + " row " + strconv.Itoa(row),
	}
}
