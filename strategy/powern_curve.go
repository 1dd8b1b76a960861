// strategy/powern_curve.go
package strategy

import (
	"math"

	"pivot_curve_bot/config"
	"pivot_curve_bot/numerics"
	"pivot_curve_bot/utils"
)

// valueEpsilon is the smallest value magnitude the pivot solver resolves.
// Value targets on the wrong side of zero pin the pivot to the price.
const valueEpsilon = numerics.Tolerance

// Position returns the target position at price x for pivot k.
// It is zero at x == k and antisymmetric in log(x/k).
func Position(cfg config.PowerNConfig, k, x float64) float64 {
	w := cfg.W
	xk := x / k
	return (w * cfg.P * cfg.C) / (2 * k * w * w) * (math.Pow(xk, -w) - math.Pow(xk, w))
}

// Value returns the integral of Position from k to x.
func Value(cfg config.PowerNConfig, k, x float64) float64 {
	w, p, c := cfg.W, cfg.P, cfg.C
	xk := x / k
	return -(c * p * (-2*k*w + (1+w)*x*math.Pow(xk, -w) + (w-1)*x*math.Pow(xk, w)) / (2 * k * (w - 1) * w * (w + 1)))
}

// pivotSide returns the direction from the price to the pivot that holds pos.
// With c > 0 a long position has its pivot above the price.
func pivotSide(cfg config.PowerNConfig, pos float64) float64 {
	return pos * utils.Sign(cfg.C)
}

// Invert is the closed form of the price at which pivot k holds position pos.
// It assumes c*p > 0.
func Invert(cfg config.PowerNConfig, k, pos float64) float64 {
	w, p, c := cfg.W, cfg.P, cfg.C
	return k * math.Pow((math.Sqrt(c*c*p*p+k*k*pos*pos*w*w)-k*pos*w)/(c*p), 1/w)
}

// PriceFromPosition finds the price at which pivot k holds position pos.
// Falls back to k when no price is found.
func PriceFromPosition(cfg config.PowerNConfig, k, pos float64) float64 {
	if math.Abs(pos) < valueEpsilon {
		return k
	}
	return numerics.FindRootPos(k, -pivotSide(cfg, pos), func(x float64) float64 {
		return Position(cfg, k, x) - pos
	}).Or(k)
}

// findK solves the pivot at which the value curve equals val at price.
// hint is the direction from price to the pivot.
func findK(cfg config.PowerNConfig, price, val, hint float64) float64 {
	// The value curve has the opposite sign of c, so targets on the other side are unreachable.
	if val*utils.Sign(cfg.C) >= valueEpsilon {
		return price
	}
	return numerics.FindRootPos(price, hint, func(k float64) float64 {
		return Value(cfg, k, price) - val
	}).Or(price)
}

// findKFromPos solves the pivot at which the position curve equals pos at price.
func findKFromPos(cfg config.PowerNConfig, price, pos float64) float64 {
	if math.Abs(pos) < valueEpsilon {
		return price
	}
	return numerics.FindRootPos(price, pivotSide(cfg, pos), func(k float64) float64 {
		return Position(cfg, k, price) - pos
	}).Or(price)
}
