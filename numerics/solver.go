// numerics/solver.go
package numerics

import "math"

const (
	// DefaultIterations is the budget for each phase of a FindRootPos search.
	// With geometric bisection the smallest resolvable unit is about 1e-10 relative.
	DefaultIterations = 32
	// RangeIterations is the coarser budget used by the one-sided range searches.
	RangeIterations = 15
	// Tolerance is the absolute |f(x)| at which a probe is accepted as a root.
	Tolerance = 1e-14
)

// Result is the outcome of a root search. X is meaningful only when OK is true.
type Result struct {
	X  float64
	OK bool
}

// Found wraps a converged root.
func Found(x float64) Result { return Result{X: x, OK: true} }

// NotFound is returned when the iteration budget is exhausted without a bracket.
var NotFound = Result{}

// Or returns the root, or fallback when the search failed or produced a non-finite value.
func (r Result) Or(fallback float64) float64 {
	if !r.OK || math.IsNaN(r.X) || math.IsInf(r.X, 0) {
		return fallback
	}
	return r.X
}

// Solver runs bounded, deterministic searches for x>0 with f(x)=0.
type Solver struct {
	Iterations int
}

var (
	// Default is the solver used for pivot inversion.
	Default = Solver{Iterations: DefaultIterations}
	// Coarse is the solver used for safe-range queries.
	Coarse = Solver{Iterations: RangeIterations}
)

// FindRootPos searches near guess. The sign of hint selects the branch:
// positive expands toward +Inf, negative toward zero. A zero hint cannot
// pick a branch and fails unless guess itself is a root.
func (s Solver) FindRootPos(guess, hint float64, f func(float64) float64) Result {
	if !(guess > 0) || math.IsInf(guess, 0) {
		return NotFound
	}
	fg := f(guess)
	if math.IsNaN(fg) {
		return NotFound
	}
	if math.Abs(fg) < Tolerance {
		return Found(guess)
	}
	switch {
	case hint > 0:
		return s.expand(guess, fg, 2, f)
	case hint < 0:
		return s.expand(guess, fg, 0.5, f)
	}
	return NotFound
}

// FindRootToZero searches from start toward zero.
func (s Solver) FindRootToZero(start float64, f func(float64) float64) Result {
	return s.oneSided(start, 0.5, f)
}

// FindRootToInf searches from start toward +Inf.
func (s Solver) FindRootToInf(start float64, f func(float64) float64) Result {
	return s.oneSided(start, 2, f)
}

func (s Solver) oneSided(start, factor float64, f func(float64) float64) Result {
	if !(start > 0) || math.IsInf(start, 0) {
		return NotFound
	}
	fs := f(start)
	if math.IsNaN(fs) {
		return NotFound
	}
	if math.Abs(fs) < Tolerance {
		return Found(start)
	}
	return s.expand(start, fs, factor, f)
}

// expand walks geometrically from a until f changes sign, then bisects the bracket.
func (s Solver) expand(a, fa, factor float64, f func(float64) float64) Result {
	for i := 0; i < s.Iterations; i++ {
		b := a * factor
		if !(b > 0) || math.IsInf(b, 0) {
			return NotFound
		}
		fb := f(b)
		if math.IsNaN(fb) {
			return NotFound
		}
		if math.Abs(fb) < Tolerance {
			return Found(b)
		}
		if math.Signbit(fa) != math.Signbit(fb) {
			return s.bisect(a, b, fa, f)
		}
		a, fa = b, fb
	}
	return NotFound
}

// bisect narrows [a,b] (either order) around the sign change using geometric midpoints.
func (s Solver) bisect(a, b, fa float64, f func(float64) float64) Result {
	m := math.Sqrt(a * b)
	for i := 0; i < s.Iterations; i++ {
		fm := f(m)
		if math.IsNaN(fm) {
			return NotFound
		}
		if math.Abs(fm) < Tolerance {
			return Found(m)
		}
		if math.Signbit(fm) == math.Signbit(fa) {
			a, fa = m, fm
		} else {
			b = m
		}
		m = math.Sqrt(a * b)
	}
	return Found(m)
}

// FindRootPos runs the default solver.
func FindRootPos(guess, hint float64, f func(float64) float64) Result {
	return Default.FindRootPos(guess, hint, f)
}

// FindRootToZero runs the coarse solver toward zero.
func FindRootToZero(start float64, f func(float64) float64) Result {
	return Coarse.FindRootToZero(start, f)
}

// FindRootToInf runs the coarse solver toward +Inf.
func FindRootToInf(start float64, f func(float64) float64) Result {
	return Coarse.FindRootToInf(start, f)
}
