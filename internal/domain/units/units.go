// Package units converts quantities between the purchase unit of an ingredient
// and the unit a recipe uses it in.
//
// Three families are known: mass (kg, g), volume (l, ml) and count-like units
// (unit, slice, portion, package, can, bottle, box, bundle) which are treated as
// interchangeable pieces. Anything else converts 1:1 and is reported as unmatched.
package units

import (
	"strings"

	"github.com/shopspring/decimal"

	"pantry/internal/core/types"
)

// Family groups units that can be converted into each other.
type Family string

const (
	FamilyMass    Family = "mass"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
	FamilyUnknown Family = "unknown"
)

// Canonical unit names.
const (
	Kilogram   = "kg"
	Gram       = "g"
	Liter      = "l"
	Milliliter = "ml"
	Unit       = "unit"
	Slice      = "slice"
	Portion    = "portion"
	Package    = "package"
	Can        = "can"
	Bottle     = "bottle"
	Box        = "box"
	Bundle     = "bundle"
)

var thousand = decimal.NewFromInt(1000)

// scale is the size of each mass/volume unit in the family's smallest unit.
var scale = map[string]decimal.Decimal{
	Kilogram:   thousand,
	Gram:       decimal.NewFromInt(1),
	Liter:      thousand,
	Milliliter: decimal.NewFromInt(1),
}

var families = map[string]Family{
	Kilogram:   FamilyMass,
	Gram:       FamilyMass,
	Liter:      FamilyVolume,
	Milliliter: FamilyVolume,
	Unit:       FamilyCount,
	Slice:      FamilyCount,
	Portion:    FamilyCount,
	Package:    FamilyCount,
	Can:        FamilyCount,
	Bottle:     FamilyCount,
	Box:        FamilyCount,
	Bundle:     FamilyCount,
}

var aliases = map[string]string{
	"kgs":        Kilogram,
	"kilo":       Kilogram,
	"kilos":      Kilogram,
	"kilogram":   Kilogram,
	"kilograms":  Kilogram,
	"gr":         Gram,
	"grs":        Gram,
	"gram":       Gram,
	"grams":      Gram,
	"lt":         Liter,
	"lts":        Liter,
	"liter":      Liter,
	"liters":     Liter,
	"litre":      Liter,
	"litres":     Liter,
	"millilitre": Milliliter,
	"milliliter": Milliliter,
	"units":      Unit,
	"pcs":        Unit,
	"piece":      Unit,
	"pieces":     Unit,
	"slices":     Slice,
	"portions":   Portion,
	"packages":   Package,
	"pack":       Package,
	"cans":       Can,
	"bottles":    Bottle,
	"boxes":      Box,
	"bundles":    Bundle,
}

// Normalize returns the canonical spelling of a unit ("L" -> "l", "grams" -> "g").
// Unknown units are returned trimmed and lower-cased.
func Normalize(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	if canonical, ok := aliases[u]; ok {
		return canonical
	}
	return u
}

// FamilyOf returns the family of a unit.
func FamilyOf(u string) Family {
	if f, ok := families[Normalize(u)]; ok {
		return f
	}
	return FamilyUnknown
}

// Compatible reports whether a quantity in from can be expressed in to without
// falling back to the 1:1 default.
func Compatible(from, to string) bool {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return true
	}
	f := FamilyOf(from)
	return f != FamilyUnknown && f == FamilyOf(to)
}

// Convert expresses qty (given in from) in to.
//
// ok is false when no rule matched and the quantity was passed through
// unchanged. Callers keep the value and should log the mismatch.
func Convert(qty types.Quantity, from, to string) (types.Quantity, bool) {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return qty, true
	}

	family := FamilyOf(from)
	if family == FamilyUnknown || family != FamilyOf(to) {
		return qty, false
	}

	switch family {
	case FamilyCount:
		return qty, true
	default:
		return qty.Mul(scale[from]).Div(scale[to]), true
	}
}
