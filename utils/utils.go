package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a currency amount with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatRate renders an interest rate as a percentage, e.g. 0.12 -> "12%".
func FormatRate(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String() + "%"
}

// ParseAmount accepts both "12.5" and "12,5".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", -1))
	s = strings.TrimPrefix(s, "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
