package domain

import (
	"strings"
	"time"
)

// Defaults for SuggestParams.
const (
	DefaultForecastPeriodDays  = 7
	DefaultSafetyDays          = 3
	DefaultForecastWindow      = 7
	DefaultLookbackDays        = 90
	DefaultTotalUnitsThreshold = 3
	DefaultSafetyRecencyDays   = 60
	DefaultSupplierRecencyDays = 30
)

// SuggestParams are the business parameters of one suggestion run.
type SuggestParams struct {
	ForecastPeriodDays  int            `json:"forecast_period_days"`
	SafetyDays          int            `json:"safety_days"`
	ForecastMethod      ForecastMethod `json:"forecast_method"`
	ForecastWindow      int            `json:"forecast_window"`
	LookbackDays        int            `json:"lookback_days"`
	TotalUnitsThreshold float64        `json:"total_units_threshold"`
	SafetyRecencyDays   int            `json:"safety_recency_days"`
	SupplierRecencyDays int            `json:"supplier_recency_days"`
	// ReferenceTime is "now" for the safety stock recency window.
	ReferenceTime time.Time `json:"reference_time"`
}

// DefaultSuggestParams returns the documented defaults with a zero reference time.
func DefaultSuggestParams() SuggestParams {
	return SuggestParams{
		ForecastPeriodDays:  DefaultForecastPeriodDays,
		SafetyDays:          DefaultSafetyDays,
		ForecastMethod:      ForecastMean,
		ForecastWindow:      DefaultForecastWindow,
		LookbackDays:        DefaultLookbackDays,
		TotalUnitsThreshold: DefaultTotalUnitsThreshold,
		SafetyRecencyDays:   DefaultSafetyRecencyDays,
		SupplierRecencyDays: DefaultSupplierRecencyDays,
	}
}

// RunStats summarises what happened to the input during a run.
type RunStats struct {
	ProductsEvaluated int `json:"products_evaluated"`
	Suggested         int `json:"suggested"`
	BelowThreshold    int `json:"below_threshold"`
	Unquoted          int `json:"unquoted"`
	DroppedSales      int `json:"dropped_sales"`
	DroppedPurchases  int `json:"dropped_purchases"`
}

// SuggestionRun is a persisted execution of the suggestion pipeline.
type SuggestionRun struct {
	ID           string               `json:"id"`
	Source       string               `json:"source"`
	Location     string               `json:"location,omitempty"`
	Status       RunStatus            `json:"status"`
	Params       SuggestParams        `json:"params"`
	Stats        RunStats             `json:"stats"`
	StartedAt    time.Time            `json:"started_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Suggestions  []PurchaseSuggestion `json:"suggestions,omitempty"`
}

// SourceKey identifies the input a run was computed from: the source kind,
// plus its directory, prefix or folder when it has one.
func SourceKey(kind, location string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	location = strings.TrimSpace(location)
	if location == "" {
		return kind
	}
	return kind + ":" + location
}

// SourceKey returns the key of the input r was computed from.
func (r *SuggestionRun) SourceKey() string {
	return SourceKey(r.Source, r.Location)
}
