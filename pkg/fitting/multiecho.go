package fitting

import (
	"math"
	"math/cmplx"

	"qimap/pkg/errs"
	"qimap/pkg/sequence"
	"qimap/pkg/tissue"
)

// T2Estimator fits a mono-exponential decay S(TE) = PD exp(-TE/T2) to a
// multi-echo train. It takes no constants.
type T2Estimator struct {
	opts Options
}

func NewT2Estimator(opts Options) (*T2Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &T2Estimator{opts: opts}, nil
}

func (e *T2Estimator) Options() Options      { return e.opts }
func (e *T2Estimator) OutputNames() []string { return []string{"PD", "T2"} }

// Estimate fits one voxel. The log-linear regression skips echoes with
// non-positive magnitude; all echoes get a residual.
func (e *T2Estimator) Estimate(seq *sequence.MultiEcho, data []float64) (Result, error) {
	const op = "multi-echo"
	if seq == nil {
		return Result{}, errs.Contract(op, "nil sequence")
	}
	if seq.Size() < 2 {
		return Result{}, errs.Contract(op, "need at least 2 echoes, got %d", seq.Size())
	}
	if len(data) != seq.Size() {
		return Result{}, errs.Contract(op, "got %d data points for %d echoes", len(data), seq.Size())
	}

	var te, lnS []float64
	for i, d := range data {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return Result{}, errs.Contract(op, "data point %d is %g", i, d)
		}
		if d > 0 {
			te = append(te, seq.TE()[i])
			lnS = append(lnS, math.Log(d))
		}
	}
	if len(te) < 2 {
		return Result{}, errs.Diverged(op, "only %d echoes with positive signal", len(te))
	}

	linear := func(w []float64) (float64, float64, error) {
		slope, icept, err := regress(op, te, lnS, w)
		if err != nil {
			return 0, 0, err
		}
		return math.Exp(icept), -1 / slope, nil
	}
	pd, T2, err := linear(nil)
	if err != nil {
		return Result{}, err
	}

	p := make([]float64, tissue.SCD.NumParameters())
	s := make([]complex128, seq.Size())
	residuals := func(dst []float64, pd, T2 float64) error {
		copy(p, tissue.SCD.Defaults())
		p[0], p[2] = pd, T2
		if err := seq.Signal(s, tissue.SCD, p); err != nil {
			return err
		}
		for i := range dst {
			dst[i] = cmplx.Abs(s[i]) - data[i]
		}
		return nil
	}

	switch e.opts.Strategy {
	case WLLS:
		for it := 0; it < e.opts.MaxIterations && physical(pd, T2); it++ {
			w := make([]float64, len(te))
			for k, t := range te {
				sk := pd * math.Exp(-t/T2)
				w[k] = sk * sk
			}
			if pd, T2, err = linear(w); err != nil {
				return Result{}, err
			}
		}
	case NLLS:
		x0 := []float64{pd, T2}
		if !physical(pd, T2) || T2 > maxRelaxation {
			x0 = []float64{math.Exp(lnS[0]), tissue.SCD.Defaults()[2]}
		}
		prob := &problem{
			m:     seq.Size(),
			lower: []float64{0, minRelaxation},
			upper: []float64{math.Inf(1), maxRelaxation},
			residuals: func(dst, x []float64) error {
				return residuals(dst, x[0], x[1])
			},
		}
		x, err := e.opts.solve(prob, x0, e.opts.MaxIterations*(seq.Size()+1))
		if err != nil {
			return Result{}, errs.Diverged(op, "nonlinear fit failed: %v", err)
		}
		pd, T2 = x[0], x[1]
	}

	if !physical(pd, T2) {
		return Result{}, errs.Diverged(op, "PD = %g, T2 = %g", pd, T2)
	}
	res := Result{Outputs: []float64{pd, T2}, Residuals: make([]float64, seq.Size())}
	if err := residuals(res.Residuals, pd, T2); err != nil {
		return Result{}, errs.Diverged(op, "final estimate not evaluable: %v", err)
	}
	return res, nil
}
