// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point decimals with at most two fractional digits. Inputs with
// more precision are rejected rather than rounded, so a stored balance never
// drifts from the sum of the amounts a user actually typed.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits every amount is held to.
const MinorUnits = 2

// ParseAmount converts a user supplied string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for invalid formats, zero or negative values,
// or values with more than two significant fractional digits.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,3")   -> 12.30, nil
//	ParseAmount("12.340") -> 12.34, nil
//	ParseAmount("12.345") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d.Round(MinorUnits), nil
}

// ParseBalance is ParseAmount for opening balances, which may be zero or negative.
func ParseBalance(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidatePrecision(d); err != nil {
		return decimal.Zero, err
	}
	return d.Round(MinorUnits), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidateAmount checks that d is strictly positive and fits the minor unit.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return ValidatePrecision(d)
}

// ValidatePrecision rejects values with more than two significant fractional digits.
func ValidatePrecision(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MinorUnits)) {
		return ErrInvalidAmount
	}
	return nil
}

// Delta returns the signed balance change for an amount of the given kind.
func Delta(kind Kind, amount decimal.Decimal) decimal.Decimal {
	if kind == Expense {
		return amount.Neg()
	}
	return amount
}

// ToCents converts an amount to integer minor units.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(MinorUnits).Round(0).IntPart()
}

// FromCents converts integer minor units back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MinorUnits)
}

var currencySymbols = map[string]string{
	"INR": "₹",
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// FormatAmount renders d with a currency symbol, thousands grouping and two decimals.
// INR uses the Indian lakh/crore grouping.
func FormatAmount(d decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(MinorUnits)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped string
	if currency == "INR" {
		grouped = groupIndian(intPart)
	} else {
		grouped = groupThousands(intPart)
	}

	symbol, ok := currencySymbols[currency]
	if !ok {
		return sign + grouped + "." + frac + " " + currency
	}
	return sign + symbol + grouped + "." + frac
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func groupIndian(s string) string {
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
