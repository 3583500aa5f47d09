// Amounts are carried as float64 taka so that the settlement arithmetic
// never fails; rounding and display go through decimal to stay exact to
// the poisha.

package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimal places. Non-finite
// values are returned unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatTaka formats an amount for display, e.g. "৳1714.29" or "-৳12.50".
func FormatTaka(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "৳NaN"
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-৳" + d.Neg().StringFixed(2)
	}
	return "৳" + d.StringFixed(2)
}
