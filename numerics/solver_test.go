package numerics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRootPosFollowsHint(t *testing.T) {
	tests := []struct {
		name  string
		guess float64
		hint  float64
		root  float64
	}{
		{"upward", 100, 1, 150},
		{"downward", 100, -1, 40},
		{"far upward", 1, 5, 1e6},
		{"far downward", 1e6, -0.1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FindRootPos(tt.guess, tt.hint, func(x float64) float64 { return x - tt.root })
			require.True(t, res.OK)
			assert.InDelta(t, tt.root, res.X, tt.root*1e-8)
		})
	}
}

func TestFindRootPosPicksBranchOfTwoValuedCurve(t *testing.T) {
	// log(x/100)^2 - 1 has roots at 100/e and 100*e
	f := func(x float64) float64 {
		l := math.Log(x / 100)
		return 1 - l*l
	}
	up := FindRootPos(100, 1, f)
	down := FindRootPos(100, -1, f)
	require.True(t, up.OK)
	require.True(t, down.OK)
	assert.InDelta(t, 100*math.E, up.X, 1e-6)
	assert.InDelta(t, 100/math.E, down.X, 1e-6)
}

func TestFindRootPosFailures(t *testing.T) {
	linear := func(x float64) float64 { return x - 150 }

	t.Run("wrong direction", func(t *testing.T) {
		assert.False(t, FindRootPos(100, -1, linear).OK)
	})
	t.Run("zero hint", func(t *testing.T) {
		assert.False(t, FindRootPos(100, 0, linear).OK)
	})
	t.Run("zero hint at root", func(t *testing.T) {
		res := FindRootPos(150, 0, linear)
		require.True(t, res.OK)
		assert.Equal(t, 150.0, res.X)
	})
	t.Run("non-positive guess", func(t *testing.T) {
		assert.False(t, FindRootPos(0, 1, linear).OK)
		assert.False(t, FindRootPos(-5, 1, linear).OK)
	})
	t.Run("nan", func(t *testing.T) {
		res := FindRootPos(100, 1, func(float64) float64 { return math.NaN() })
		assert.False(t, res.OK)
	})
	t.Run("budget exhausted", func(t *testing.T) {
		s := Solver{Iterations: 3}
		assert.False(t, s.FindRootPos(1, 1, func(x float64) float64 { return x - 1000 }).OK)
	})
}

func TestResultOr(t *testing.T) {
	assert.Equal(t, 7.0, NotFound.Or(7))
	assert.Equal(t, 3.0, Found(3).Or(7))
	assert.Equal(t, 7.0, Found(math.NaN()).Or(7))
	assert.Equal(t, 7.0, Found(math.Inf(1)).Or(7))
}

func TestOneSidedSearches(t *testing.T) {
	t.Run("to zero", func(t *testing.T) {
		res := FindRootToZero(100, func(x float64) float64 { return x - 1 })
		require.True(t, res.OK)
		assert.InDelta(t, 1, res.X, 1e-3)
	})
	t.Run("to zero beyond horizon", func(t *testing.T) {
		res := FindRootToZero(100, func(x float64) float64 { return x - 1e-9 })
		assert.False(t, res.OK)
	})
	t.Run("to inf", func(t *testing.T) {
		res := FindRootToInf(1, func(x float64) float64 { return 1000 - x })
		require.True(t, res.OK)
		assert.InDelta(t, 1000, res.X, 0.1)
	})
	t.Run("to inf beyond horizon", func(t *testing.T) {
		res := FindRootToInf(1, func(x float64) float64 { return 1e9 - x })
		assert.False(t, res.OK)
	})
}
