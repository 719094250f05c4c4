package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a decimal price string into integer ticks with the
// given number of decimal places. It rejects non-positive values and
// values more precise than scale allows.
func ParsePrice(s string, scale int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a decimal number", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("price must be greater than 0")
	}
	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("price must have at most %d decimal places", scale)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("price %q is out of range", s)
	}
	return shifted.IntPart(), nil
}

// Notional is price times quantity in ticks. The product does not fit
// in int64 for large books, so it stays a decimal.
func Notional(price, quantity int64) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(decimal.NewFromInt(quantity))
}

// AveragePrice divides a notional by a quantity, truncating to whole
// ticks.
func AveragePrice(notional, quantity decimal.Decimal) int64 {
	q, _ := notional.QuoRem(quantity, 0)
	return q.IntPart()
}

// FormatNotional renders a notional held in ticks as a fixed-point
// decimal string.
func FormatNotional(ticks decimal.Decimal, scale int32) string {
	return ticks.Shift(-scale).StringFixed(scale)
}

// FormatPrice renders ticks as a fixed-point decimal string.
func FormatPrice(ticks int64, scale int32) string {
	return decimal.New(ticks, -scale).StringFixed(scale)
}
