package fitting

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"qimap/pkg/errs"
)

// gonumMethod maps a minimiser name onto a gonum/optimize method.
func gonumMethod(name string) optimize.Method {
	switch name {
	case MethodNelderMead:
		return &optimize.NelderMead{}
	case MethodBFGS:
		return &optimize.BFGS{}
	default:
		return nil
	}
}

// minimize solves p with a general-purpose gonum minimiser on the scaled
// scalar cost. Points where the model fails cost +Inf.
func minimize(method string, p *problem, x0 []float64, budget int, tol float64) ([]float64, error) {
	m := gonumMethod(method)
	if m == nil {
		return nil, errs.Contract("nlls", "minimiser %q is not a gonum method", method)
	}
	s := newScaled(p, x0)
	r := make([]float64, p.m)
	z := make([]float64, len(x0))

	f := func(zz []float64) float64 {
		copy(z, zz)
		if err := s.eval(r, z); err != nil {
			return math.Inf(1)
		}
		c := p.cost(r)
		if math.IsNaN(c) {
			return math.Inf(1)
		}
		return c
	}
	prob := optimize.Problem{Func: f}
	if method == MethodBFGS {
		prob.Grad = func(grad, zz []float64) {
			fd.Gradient(grad, f, zz, nil)
		}
	}

	z0 := make([]float64, len(x0))
	s.toZ(z0, x0)
	if math.IsInf(f(z0), 1) {
		return nil, errs.Domain("nlls", "model undefined at the starting point")
	}

	settings := &optimize.Settings{
		FuncEvaluations: budget,
		Converger: &optimize.FunctionConverge{
			Absolute:   gradientTolerance,
			Relative:   tol,
			Iterations: 20,
		},
	}
	res, err := optimize.Minimize(prob, z0, settings, m)
	if res == nil {
		return nil, err
	}

	copy(z, res.X)
	x := make([]float64, len(x0))
	s.toX(x, z)
	p.project(x)
	return x, nil
}
