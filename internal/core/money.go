// Package core provides money parsing and handling utilities.
//
// This file contains functions for converting human-entered decimal amounts to
// integer minor units (cents, paise) and back. Amounts never pass through float64.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred     = decimal.NewFromInt(100)
	maxMinorDec = decimal.NewFromInt(math.MaxInt64)
)

// ToMinorUnits converts a decimal string to minor units with half-away-from-zero rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs, exponents,
// NaN/Inf and anything that is not a plain non-negative decimal are rejected with
// ErrInvalidAmount. Zero is a valid amount.
//
// Examples:
//
//	ToMinorUnits("12.34") -> 1234, nil
//	ToMinorUnits("12,34") -> 1234, nil
//	ToMinorUnits("0.005") -> 1, nil (rounds up)
//	ToMinorUnits("0.004") -> 0, nil (rounds down)
func ToMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if !isPlainDecimal(s) {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := d.Mul(hundred).Round(0)
	if minor.IsNegative() || minor.GreaterThan(maxMinorDec) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// isPlainDecimal reports whether s is digits with at most one '.' and at least one digit.
func isPlainDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// ToDisplayString formats minor units as major.minor with two zero-padded digits.
func ToDisplayString(minor int64) string {
	sign := ""
	u := uint64(minor)
	if minor < 0 {
		sign = "-"
		u = uint64(-(minor + 1)) + 1
	}
	frac := u % 100
	s := sign + strconv.FormatUint(u/100, 10) + "."
	if frac < 10 {
		s += "0"
	}
	return s + strconv.FormatUint(frac, 10)
}

// Display returns the amount of e formatted for humans.
func (e Expense) Display() string {
	return ToDisplayString(e.AmountMinorUnits)
}
