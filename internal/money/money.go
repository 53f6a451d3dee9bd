// Package money provides shared amount parsing and formatting utilities.
//
// All marketplace amounts are carried as decimal strings with 2 fractional
// digits and computed as big.Int in the smallest currency unit (paise):
// "1.50" parses to 150.
package money

import (
	"math/big"
	"strings"
)

const Decimals = 2

// Parse converts a decimal string (e.g. "1.50") to its smallest-unit
// big.Int representation (150). Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 2 decimal places
func Parse(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	// Pad or trim to 2 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	return result, ok
}

// Format converts a smallest-unit big.Int to a decimal string with exactly
// 2 decimal places (e.g. "1.50").
func Format(amount *big.Int) string {
	if amount == nil {
		return "0.00"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// IsPositive reports whether s parses to an amount strictly greater than zero.
func IsPositive(s string) bool {
	v, ok := Parse(s)
	return ok && v.Sign() > 0
}

// Cmp compares two decimal amount strings. Invalid inputs compare as zero.
func Cmp(a, b string) int {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	if av == nil {
		av = big.NewInt(0)
	}
	if bv == nil {
		bv = big.NewInt(0)
	}
	return av.Cmp(bv)
}

// Add returns the formatted sum of two decimal amount strings.
func Add(a, b string) string {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	return Format(new(big.Int).Add(av, bv))
}

// Sub returns the formatted difference a-b of two decimal amount strings.
func Sub(a, b string) string {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	return Format(new(big.Int).Sub(av, bv))
}

// MulHours multiplies an hourly rate by a duration expressed in minutes,
// rounding half-up to the nearest paise. Used for worklog settlement where
// amount = rate x (minutes / 60).
func MulHours(rate string, minutes int64) (string, bool) {
	rv, ok := Parse(rate)
	if !ok || minutes < 0 {
		return "", false
	}
	// rate_paise * minutes / 60, half-up
	num := new(big.Int).Mul(rv, big.NewInt(minutes))
	num.Mul(num, big.NewInt(2))
	num.Add(num, big.NewInt(60))
	num.Div(num, big.NewInt(120))
	return Format(num), true
}

// MulInt multiplies an amount by an integer factor (e.g. rate x weekly hours).
func MulInt(amount string, factor int64) (string, bool) {
	av, ok := Parse(amount)
	if !ok || factor < 0 {
		return "", false
	}
	return Format(new(big.Int).Mul(av, big.NewInt(factor))), true
}

// Commission computes the platform cut of a gross amount at the given rate
// expressed in basis points (1500 = 15%), rounding half-up. It returns the
// commission and the remaining net so that commission+net always equals the
// gross amount exactly.
func Commission(gross string, rateBps int64) (commission, net string, ok bool) {
	gv, ok := Parse(gross)
	if !ok || rateBps < 0 || rateBps > 10000 {
		return "", "", false
	}
	// gross_paise * rateBps / 10000, half-up
	c := new(big.Int).Mul(gv, big.NewInt(rateBps))
	c.Mul(c, big.NewInt(2))
	c.Add(c, big.NewInt(10000))
	c.Div(c, big.NewInt(20000))
	n := new(big.Int).Sub(gv, c)
	return Format(c), Format(n), true
}
