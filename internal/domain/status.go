package domain

import "strings"

// ForecastMethod selects how the daily demand rate is derived from history.
type ForecastMethod string

const (
	ForecastMean     ForecastMethod = "mean"
	ForecastRolling  ForecastMethod = "rolling"
	ForecastWeighted ForecastMethod = "weighted"
	ForecastTrend    ForecastMethod = "trend"
)

var forecastMethods = map[string]ForecastMethod{
	"mean":     ForecastMean,
	"rolling":  ForecastRolling,
	"weighted": ForecastWeighted,
	"trend":    ForecastTrend,
}

// ParseForecastMethod returns the method for a given label (case-insensitive).
func ParseForecastMethod(label string) (ForecastMethod, bool) {
	m, ok := forecastMethods[strings.ToLower(strings.TrimSpace(label))]

	return m, ok
}

// UsesWindow reports whether the method reads the window parameter.
func (m ForecastMethod) UsesWindow() bool {
	return m == ForecastRolling || m == ForecastWeighted
}

// RunStatus is the lifecycle state of a persisted suggestion run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)
