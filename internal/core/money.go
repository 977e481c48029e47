// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values so that sums stay exact: adding
// 10.00, 20.50 and 0.50 yields exactly 31.00.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "$"

// Accepted amount range: at most maxIntegerDigits digits before the
// decimal point and maxScale digits after it. Exponent notation is
// checked against the same bounds before any digits are expanded.
const (
	maxIntegerDigits = 15
	maxScale         = 12
)

// ParseAmount converts a decimal string into a positive amount.
//
// Surrounding whitespace is ignored. Empty input, unparseable input,
// values that are zero or negative and values outside the accepted range
// all return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("2.50")  -> 2.50, nil
//	ParseAmount(" 15 ")  -> 15, nil
//	ParseAmount("0")     -> ErrInvalidAmount
//	ParseAmount("-5.00") -> ErrInvalidAmount
//	ParseAmount("1e3")   -> 1000, nil
//	ParseAmount("1e100") -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() || !inRange(d) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// inRange only looks at the coefficient and exponent, never at the
// expanded value.
func inRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxScale {
		return false
	}
	return int64(d.NumDigits())+exp <= maxIntegerDigits
}

// FormatAmount renders d with the currency symbol and two decimals (e.g. "$12.50").
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}
