// Package money converts integer cents to and from decimal amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the storefront charges in.
const DefaultCurrency = "usd"

// Amount is the wire form of a price: exact cents plus a display string.
type Amount struct {
	Cents   int64  `json:"cents"`
	Display string `json:"amount"`
}

// FromCents builds the wire form of cents.
func FromCents(cents int64) Amount {
	return Amount{Cents: cents, Display: Format(cents)}
}

// Decimal returns cents as a decimal currency amount.
func Decimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Format renders cents with exactly two fraction digits, e.g. "100.00".
func Format(cents int64) string {
	return Decimal(cents).StringFixed(2)
}

// ParseCents parses a decimal amount such as "19.99" into cents. More than two
// fraction digits is rejected rather than rounded.
func ParseCents(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", value)
	}
	return shifted.IntPart(), nil
}

// NormalizeCurrency lower-cases the code and applies the default when empty.
func NormalizeCurrency(code string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return DefaultCurrency
	}
	return normalized
}

// Supported reports whether payments may be taken in code.
func Supported(code string) bool {
	return NormalizeCurrency(code) == DefaultCurrency
}
