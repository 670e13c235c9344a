package suggest

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// ProductIDWidth is the fixed width product ids are zero-padded to.
	ProductIDWidth = 10
	// SupplierNameMaxLen is the display length of supplier names.
	SupplierNameMaxLen = 25
	// UnknownSupplier marks products without any usable purchase history.
	UnknownSupplier = "UNKNOWN"
)

// NormalizeProductID trims id and left-pads it with zeros to ProductIDWidth.
func NormalizeProductID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if n := utf8.RuneCountInString(id); n < ProductIDWidth {
		id = strings.Repeat("0", ProductIDWidth-n) + id
	}
	return id
}

// TruncateName cuts s to at most max runes.
func TruncateName(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

// roundMoney rounds v to 2 decimal places, half to even.
func roundMoney(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

// dateOnly drops the clock part of t, keeping its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// groupByProduct groups rows by key, keeping input order inside each group.
// Keys are returned in ascending order.
func groupByProduct[T any](rows []T, key func(T) string) ([]string, map[string][]T) {
	groups := make(map[string][]T)
	for _, r := range rows {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}
