package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// DecimalToFixed rounds num half away from zero to precision decimal places.
// Rounding goes through decimal so that 0.125 rounds to 0.13, not 0.12.
func DecimalToFixed(num float64, precision int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}
	return decimal.NewFromFloat(num).Round(int32(precision)).InexactFloat64()
}

// FormatFixed renders num with the shortest representation that
// survives a round trip, eg. 15.17 -> "15.17", 12 -> "12".
func FormatFixed(num float64) string {
	return decimal.NewFromFloat(num).String()
}
