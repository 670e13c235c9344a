package suggest

import (
	"math"
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
)

// UnitPackName is the pseudo pack used when a product is ordered in units.
const UnitPackName = "UND"

// PackResult is an orderable quantity: PackCount packs of PackSize units.
type PackResult struct {
	PackCount int
	PackName  string
	PackSize  float64
}

// Packager converts unit quantities into pack counts using the packaging
// options of each product.
type Packager struct {
	options map[string][]domain.PackagingOption
}

// NewPackager indexes the usable options by product, smallest pack first.
// Return variants and packs without a positive size are skipped.
func NewPackager(options []domain.PackagingOption) *Packager {
	usable := make([]domain.PackagingOption, 0, len(options))
	for _, o := range options {
		if isReturnVariant(o.Name) || !isFinite(o.UnitConversion) || o.UnitConversion <= 0 {
			continue
		}
		usable = append(usable, o)
	}

	_, byProduct := groupByProduct(usable, func(o domain.PackagingOption) string { return o.ProductID })
	for _, opts := range byProduct {
		sort.SliceStable(opts, func(i, j int) bool {
			return opts[i].UnitConversion < opts[j].UnitConversion
		})
	}

	return &Packager{options: byProduct}
}

// Convert turns quantity units of productID into packs. The pack count is
// rounded to the nearest integer (half to even), never floored or ceiled.
func (p *Packager) Convert(quantity float64, productID string) PackResult {
	if !(quantity > 0) {
		return PackResult{PackCount: 0, PackName: UnitPackName, PackSize: 1}
	}

	packs := p.options[productID]
	if len(packs) == 0 {
		return PackResult{PackCount: int(math.Ceil(quantity)), PackName: UnitPackName, PackSize: 1}
	}

	for i, pack := range packs {
		size := pack.UnitConversion
		if quantity <= size {
			return PackResult{PackCount: 1, PackName: pack.Name, PackSize: size}
		}
		if i < len(packs)-1 && quantity < packs[i+1].UnitConversion {
			return PackResult{PackCount: roundPacks(quantity / size), PackName: pack.Name, PackSize: size}
		}
	}

	largest := packs[len(packs)-1]
	return PackResult{
		PackCount: roundPacks(quantity / largest.UnitConversion),
		PackName:  largest.Name,
		PackSize:  largest.UnitConversion,
	}
}

// ConvertQuantity is Convert over an ad-hoc option list.
func ConvertQuantity(quantity float64, productID string, options []domain.PackagingOption) PackResult {
	return NewPackager(options).Convert(quantity, productID)
}

func roundPacks(v float64) int {
	return int(math.RoundToEven(v))
}

// isReturnVariant reports packaging names that describe negative/return packs.
func isReturnVariant(name string) bool {
	return strings.Contains(strings.ToLower(name), "neg")
}
