// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering cents in Brazilian real notation.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to Money.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, with the
// other character as an optional thousands separator. Values are rounded
// half away from zero to cents. Negative values are accepted; use
// Money.Validate to require a positive amount.
//
// Examples:
//
//	ParseAmount("100.50") -> {10050}, nil
//	ParseAmount("12,34")  -> {1234}, nil
//	ParseAmount("1.005")  -> {101}, nil
//	ParseAmount("abc")    -> {}, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// normalizeSeparators turns "1.234,56" and "12,34" into dot-decimal form.
func normalizeSeparators(s string) string {
	comma := strings.LastIndex(s, ",")
	if comma < 0 {
		return s
	}
	if dot := strings.LastIndex(s, "."); dot > comma {
		// "1,234.56": commas are thousands separators
		return strings.ReplaceAll(s, ",", "")
	}
	s = strings.ReplaceAll(s, ".", "")
	return strings.Replace(s, ",", ".", 1)
}

// maxCents bounds a parsed amount (about R$ 11 billion) so that a sum of
// millions of them cannot overflow int64.
const maxCents = 1 << 40

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the plain API form, e.g. "1234.56".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// BRL renders the amount as "R$ 1.234,56".
func (m Money) BRL() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	s := b.String() + "," + strconv.FormatInt(frac/10, 10) + strconv.FormatInt(frac%10, 10)
	if neg {
		return "-R$ " + s
	}
	return "R$ " + s
}
