// utils/math.go
package utils

import (
	"github.com/shopspring/decimal"
)

const Epsilon = 1e-9

// Sign returns -1, 0 or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// RoundToStep truncates a signed quantity toward zero to a multiple of step.
// The decimal round trip keeps values such as 0.3 from becoming 0.29999999.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	d := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Truncate(0).Mul(s).Float64()
	return out
}

// CeilToStep rounds a non-negative quantity up to a multiple of step.
func CeilToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	d := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Ceil().Mul(s).Float64()
	return out
}
