package domain

import "github.com/shopspring/decimal"

// All monetary values use shopspring/decimal, never float64.
// Prices are quoted with at most 2 decimal places.

// ValidPrice reports whether d is usable as an order price: strictly
// positive with no more precision than 2 decimal places.
func ValidPrice(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}
