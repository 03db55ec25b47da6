package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.5", true},
		{"250.00", "250", true},
		{"12.340", "12.34", true},
		{"1.005", "", false}, // more precision than the minor unit
		{"-1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%q error %v should be invalid input", tc.in, err)
			}
		}
	}
}

func TestParseBalance(t *testing.T) {
	for in, want := range map[string]string{"": "0", "0": "0", "-120.5": "-120.5", "1000": "1000"} {
		got, err := ParseBalance(in)
		if err != nil || !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseBalance(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseBalance("10.001"); err == nil {
		t.Error("expected precision error")
	}
}

func TestDelta(t *testing.T) {
	amt := decimal.RequireFromString("250.00")
	if got := Delta(Expense, amt); !got.Equal(decimal.RequireFromString("-250")) {
		t.Errorf("expense delta = %s", got)
	}
	if got := Delta(Income, amt); !got.Equal(amt) {
		t.Errorf("income delta = %s", got)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "1000.00", "-45.10", "123456789.99"} {
		d := decimal.RequireFromString(s)
		if got := FromCents(ToCents(d)); !got.Equal(d) {
			t.Errorf("round trip %s -> %s", s, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"0", "INR", "₹0.00"},
		{"999.5", "INR", "₹999.50"},
		{"1234567.8", "INR", "₹12,34,567.80"},
		{"1234567.8", "USD", "$1,234,567.80"},
		{"-45", "EUR", "-€45.00"},
		{"100000", "CHF", "100,000.00 CHF"},
	}
	for _, tc := range cases {
		if got := FormatAmount(decimal.RequireFromString(tc.amount), tc.currency); got != tc.want {
			t.Errorf("FormatAmount(%s, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
