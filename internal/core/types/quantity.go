// Package types defines the numeric types of the ledger.
//
// Quantities and money are both decimal.Decimal: purchases arrive as 2.4 kg for
// 120.00 and recipes consume 160 g, so binary floating point is not acceptable.
package types

import (
	"github.com/shopspring/decimal"
)

// Quantity is an amount of an ingredient expressed in some unit.
type Quantity = decimal.Decimal

// Money is a monetary amount. No currency rounding is applied by the ledger.
type Money = decimal.Decimal

// Zero is the zero quantity / amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// ParseQuantity parses a decimal string.
func ParseQuantity(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity parses a decimal string and panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// MustMoney parses a decimal string and panics on error.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
