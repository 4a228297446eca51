package fitting

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// problem is a bounded nonlinear least-squares problem over the parameters
// x. residuals writes len(dst) == m residuals and may fail for points where
// the forward model is undefined.
type problem struct {
	m            int
	lower, upper []float64
	residuals    func(dst, x []float64) error
}

func (p *problem) project(x []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], p.lower[i]), p.upper[i])
	}
}

func (p *problem) cost(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

// Termination constants of the Levenberg-Marquardt loop.
const (
	gradientTolerance = 1e-14
	maxDamping        = 1e16
	initialDamping    = 1e-3
)

// scaled wraps a problem so that the solver works on z = x / scale, with the
// scale taken from the starting point. Parameters of very different
// magnitude (PD in arbitrary units, T1 in seconds) then share one finite
// difference step.
type scaled struct {
	p     *problem
	scale []float64
	x     []float64
}

func newScaled(p *problem, x0 []float64) *scaled {
	s := &scaled{p: p, scale: make([]float64, len(x0)), x: make([]float64, len(x0))}
	for i, v := range x0 {
		s.scale[i] = math.Abs(v)
		if s.scale[i] == 0 {
			s.scale[i] = 1
		}
	}
	return s
}

func (s *scaled) toX(dst, z []float64) {
	for i := range z {
		dst[i] = z[i] * s.scale[i]
	}
}

func (s *scaled) toZ(dst, x []float64) {
	for i := range x {
		dst[i] = x[i] / s.scale[i]
	}
}

// eval projects z into the bounds, in place, and evaluates the residuals.
func (s *scaled) eval(dst, z []float64) error {
	s.toX(s.x, z)
	s.p.project(s.x)
	s.toZ(z, s.x)
	return s.p.residuals(dst, s.x)
}

// levenberg minimises ½‖r(x)‖² from x0 with at most budget residual
// evaluations, Jacobian columns included. It returns the best point found
// and the number of evaluations spent. An error is returned only when the
// starting point itself cannot be evaluated.
func levenberg(p *problem, x0 []float64, budget int, tol float64) ([]float64, int, error) {
	n := len(x0)
	s := newScaled(p, x0)

	z := make([]float64, n)
	s.toZ(z, x0)
	r := make([]float64, p.m)
	if err := s.eval(r, z); err != nil {
		return nil, 1, err
	}
	evals := 1
	cost := p.cost(r)

	var (
		jac    = mat.NewDense(p.m, n, nil)
		jtj    = mat.NewSymDense(n, nil)
		lhs    = mat.NewDense(n, n, nil)
		grad   = mat.NewVecDense(n, nil)
		step   = mat.NewVecDense(n, nil)
		trial  = make([]float64, n)
		rTrial = make([]float64, p.m)
		lu     mat.LU
		jerr   error
	)
	lambda := initialDamping
	settings := &fd.JacobianSettings{Formula: fd.Forward, OriginValue: r}
	jf := func(y, zz []float64) {
		if err := s.eval(y, zz); err != nil {
			jerr = err
			for i := range y {
				y[i] = math.NaN()
			}
		}
	}

	for evals+n+1 <= budget {
		jerr = nil
		settings.OriginValue = r
		fd.Jacobian(jac, jf, z, settings)
		evals += n
		if jerr != nil {
			break
		}

		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(p.m, r))
		if mat.Norm(grad, math.Inf(1)) < gradientTolerance {
			break
		}

		accepted := false
		for !accepted && evals < budget {
			lhs.Copy(jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d == 0 {
					d = 1
				}
				lhs.Set(i, i, d*(1+lambda))
			}
			lu.Factorize(lhs)
			if err := lu.SolveVecTo(step, false, grad); err != nil {
				lambda *= 10
				if lambda > maxDamping {
					break
				}
				continue
			}

			for i := range trial {
				trial[i] = z[i] - step.AtVec(i)
			}
			err := s.eval(rTrial, trial)
			evals++
			if c := p.cost(rTrial); err == nil && c < cost {
				moved := floats.Distance(trial, z, 2)
				decrease := (cost - c) / cost
				copy(z, trial)
				copy(r, rTrial)
				cost = c
				lambda = math.Max(lambda/10, 1e-12)
				accepted = true
				if moved < tol*(floats.Norm(z, 2)+tol) || decrease < tol {
					s.toX(trial, z)
					return trial, evals, nil
				}
				continue
			}
			lambda *= 10
			if lambda > maxDamping {
				break
			}
		}
		if !accepted {
			break
		}
	}

	x := make([]float64, n)
	s.toX(x, z)
	return x, evals, nil
}
