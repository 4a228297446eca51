package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"qimap/pkg/errs"
)

// regress fits y = slope*x + intercept by (weighted) least squares through
// the 2x2 normal equations. A nil w means unit weights.
func regress(op string, x, y, w []float64) (slope, intercept float64, err error) {
	var sw, sx, sxx, sy, sxy float64
	for i := range x {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		sw += wi
		sx += wi * x[i]
		sxx += wi * x[i] * x[i]
		sy += wi * y[i]
		sxy += wi * x[i] * y[i]
	}

	A := mat.NewDense(2, 2, []float64{
		sxx, sx,
		sx, sw,
	})
	rhs := mat.NewVecDense(2, []float64{sxy, sy})
	var lu mat.LU
	lu.Factorize(A)
	var b mat.VecDense
	if err := lu.SolveVecTo(&b, false, rhs); err != nil {
		return 0, 0, errs.Diverged(op, "regression is singular: %v", err)
	}
	slope, intercept = b.AtVec(0), b.AtVec(1)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return 0, 0, errs.Diverged(op, "regression produced NaN")
	}
	return slope, intercept, nil
}

// physical reports whether an estimate pair can be a valid (PD, T) result.
func physical(pd, T float64) bool {
	return !math.IsNaN(pd) && !math.IsInf(pd, 0) &&
		!math.IsNaN(T) && !math.IsInf(T, 0) && T > 0
}
