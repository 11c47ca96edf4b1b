// Package quant holds the fixed-point numeric types used on the hotpath.
// Map keys and sums never touch float64.
package quant

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept in a PriceMicros.
const PriceScale = 6

// ErrOutOfRange is returned when a value does not fit in int64 after scaling.
var ErrOutOfRange = errors.New("value out of int64 range")

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// PriceMicros is a price multiplied by 10^6.
type PriceMicros int64

// Qty is an integral order or level size.
type Qty int64

// TimeStamp is Unix microseconds.
type TimeStamp int64

// Now returns the current time as a TimeStamp.
func Now() TimeStamp {
	return TimeStamp(time.Now().UnixMicro())
}

// ToPriceMicros converts a float price, rounding half away from zero.
func ToPriceMicros(price float64) PriceMicros {
	return FromDecimal(decimal.NewFromFloat(price))
}

// FromDecimal converts a decimal price, rounding half away from zero.
// The caller must keep d within range; ParsePriceMicros checks it.
func FromDecimal(d decimal.Decimal) PriceMicros {
	return PriceMicros(d.Shift(PriceScale).Round(0).IntPart())
}

func checkRange(d decimal.Decimal) error {
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return ErrOutOfRange
	}
	return nil
}

// ParsePriceMicros parses a decimal string such as "101.25".
func ParsePriceMicros(s string) (PriceMicros, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if err := checkRange(d.Shift(PriceScale).Round(0)); err != nil {
		return 0, fmt.Errorf("price %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the price as a decimal.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceScale)
}

func (p PriceMicros) String() string {
	return p.Decimal().String()
}

// ParseQty parses an integral, non-negative size. "5.0" is accepted, "5.5" is not.
func ParseQty(s string) (Qty, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse qty %q: %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("qty %q is not integral", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("qty %q is negative", s)
	}
	if err := checkRange(d); err != nil {
		return 0, fmt.Errorf("qty %q: %w", s, err)
	}
	return Qty(d.IntPart()), nil
}
