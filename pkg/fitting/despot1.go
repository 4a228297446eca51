// Package fitting inverts the signal equations voxel by voxel.
//
// Each estimator is configured once with Options and is then safe for
// concurrent use: every Estimate call allocates its own working state and
// either returns a complete Result or an error, never a partial one.
//
// Errors are classified with the errs package. Contract errors report bad
// inputs (wrong lengths, too few usable conditions). Diverged errors report a
// fit that ended outside the physical range, which is an ordinary outcome for
// noisy or background voxels.
package fitting

import (
	"math"
	"math/cmplx"

	"qimap/pkg/errs"
	"qimap/pkg/sequence"
	"qimap/pkg/tissue"
)

// Flip angles whose effective sine is below this are not used in the
// regression. They carry no T1 information but still get a residual.
const zeroSine = 1e-9

// Bounds applied to NLLS estimates by projection.
const (
	minRelaxation = 1e-6
	maxRelaxation = 1e4
)

// T1Estimator is the DESPOT1 estimator: PD and T1 from a variable flip angle
// SPGR series with a known transmit-field scale B1 as the only constant.
type T1Estimator struct {
	opts Options
}

// NewT1Estimator validates opts and creates the estimator.
//
// Parameters:
//   - opts: strategy, iteration count and NLLS controls
//
// Returns:
//   - *T1Estimator: ready to use from any number of goroutines
//   - error: a ContractError when opts is invalid
func NewT1Estimator(opts Options) (*T1Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &T1Estimator{opts: opts}, nil
}

// Options returns the estimator settings.
func (e *T1Estimator) Options() Options { return e.opts }

// OutputNames lists the estimated quantities in Result order.
func (e *T1Estimator) OutputNames() []string { return []string{"PD", "T1"} }

// despot1Voxel holds the per-call working state.
type despot1Voxel struct {
	seq  *sequence.SPGR
	data []float64
	B1   float64
	sin  []float64
	cos  []float64
	use  []int
	x, y []float64
}

func newDespot1Voxel(seq *sequence.SPGR, data []float64, B1 float64) *despot1Voxel {
	n := seq.Size()
	v := &despot1Voxel{seq: seq, data: data, B1: B1, sin: make([]float64, n), cos: make([]float64, n)}
	for i, a := range seq.Flip() {
		v.sin[i], v.cos[i] = math.Sincos(a * B1)
		if math.Abs(v.sin[i]) >= zeroSine {
			v.use = append(v.use, i)
		}
	}
	v.x = make([]float64, len(v.use))
	v.y = make([]float64, len(v.use))
	for k, i := range v.use {
		v.y[k] = data[i] / v.sin[i]
		v.x[k] = data[i] * v.cos[i] / v.sin[i]
	}
	return v
}

// linear solves Y = E1*X + PD(1-E1) with optional weights.
func (v *despot1Voxel) linear(w []float64) (pd, T1 float64, err error) {
	E1, icept, err := regress("despot1", v.x, v.y, w)
	if err != nil {
		return 0, 0, err
	}
	T1 = -v.seq.TR() / math.Log(E1)
	pd = icept / (1 - E1)
	return pd, T1, nil
}

func (v *despot1Voxel) weights(T1 float64) []float64 {
	E1 := math.Exp(-v.seq.TR() / T1)
	w := make([]float64, len(v.use))
	for k, i := range v.use {
		g := v.sin[i] / (1 - E1*v.cos[i])
		w[k] = g * g
	}
	return w
}

// profile returns the least-squares PD and cost for a fixed T1, using the
// closed-form unit-PD signal.
func (v *despot1Voxel) profile(T1 float64) (pd, cost float64) {
	E1 := math.Exp(-v.seq.TR() / T1)
	var sd, ss float64
	unit := make([]float64, len(v.data))
	for i := range v.data {
		unit[i] = math.Abs(v.sin[i] * (1 - E1) / (1 - E1*v.cos[i]))
		sd += unit[i] * v.data[i]
		ss += unit[i] * unit[i]
	}
	if ss > 0 {
		pd = math.Max(sd/ss, 0)
	}
	for i := range v.data {
		r := pd*unit[i] - v.data[i]
		cost += 0.5 * r * r
	}
	return pd, cost
}

// params builds the full single-compartment vector for a (PD, T1) pair.
func (v *despot1Voxel) params(dst []float64, pd, T1 float64) {
	copy(dst, tissue.SCD.Defaults())
	dst[0] = pd
	dst[1] = T1
	dst[4] = v.B1
}

// residuals writes |signal(PD, T1)| - data.
func (v *despot1Voxel) residuals(dst []float64, pd, T1 float64, p []float64, s []complex128) error {
	v.params(p, pd, T1)
	if err := v.seq.Signal(s, tissue.SCD, p); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = cmplx.Abs(s[i]) - v.data[i]
	}
	return nil
}

// Estimate fits one voxel.
//
// Parameters:
//   - seq: the SPGR series the data were acquired with
//   - data: one magnitude per flip angle, in sequence order
//   - consts: [B1]; nil means [1.0]
//
// Returns:
//   - Result: Outputs [PD, T1] and one residual per condition
//   - error: ContractError for bad inputs or fewer than two flip angles with
//     a usable sine, DivergedError for a non-physical estimate
func (e *T1Estimator) Estimate(seq *sequence.SPGR, data, consts []float64) (Result, error) {
	const op = "despot1"
	if seq == nil {
		return Result{}, errs.Contract(op, "nil sequence")
	}
	if len(data) != seq.Size() {
		return Result{}, errs.Contract(op, "got %d data points for %d flip angles", len(data), seq.Size())
	}
	if consts == nil {
		consts = []float64{1}
	}
	if len(consts) != 1 {
		return Result{}, errs.Contract(op, "want 1 constant (B1), got %d", len(consts))
	}
	B1 := consts[0]
	if !(B1 > 0) || math.IsInf(B1, 0) {
		return Result{}, errs.Contract(op, "B1 = %g must be positive", B1)
	}
	for i, d := range data {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return Result{}, errs.Contract(op, "data point %d is %g", i, d)
		}
	}

	v := newDespot1Voxel(seq, data, B1)
	if len(v.use) < 2 {
		return Result{}, errs.Contract(op, "only %d flip angles with non-zero sine, need 2", len(v.use))
	}

	pd, T1, err := v.linear(nil)
	if err != nil {
		return Result{}, err
	}

	switch e.opts.Strategy {
	case WLLS:
		for it := 0; it < e.opts.MaxIterations; it++ {
			if !physical(pd, T1) {
				break
			}
			if pd, T1, err = v.linear(v.weights(T1)); err != nil {
				return Result{}, err
			}
		}
	case NLLS:
		if pd, T1, err = e.nonlinear(v, pd, T1); err != nil {
			return Result{}, err
		}
	}

	if !physical(pd, T1) {
		return Result{}, errs.Diverged(op, "PD = %g, T1 = %g", pd, T1)
	}

	res := Result{Outputs: []float64{pd, T1}, Residuals: make([]float64, seq.Size())}
	p := make([]float64, tissue.SCD.NumParameters())
	s := make([]complex128, seq.Size())
	if err := v.residuals(res.Residuals, pd, T1, p, s); err != nil {
		return Result{}, errs.Diverged(op, "final estimate not evaluable: %v", err)
	}
	return res, nil
}

func (e *T1Estimator) nonlinear(v *despot1Voxel, pd, T1 float64) (float64, float64, error) {
	var x0 []float64
	switch {
	case e.opts.Seed == SeedMayfly:
		seed, err := globalSeed(e.opts, v.profile)
		if err != nil {
			return 0, 0, err
		}
		x0 = seed
	case physical(pd, T1) && T1 >= minRelaxation && T1 <= maxRelaxation:
		x0 = []float64{math.Max(pd, 0), T1}
	default:
		T1 = tissue.SCD.Defaults()[1]
		pd, _ = v.profile(T1)
		x0 = []float64{pd, T1}
	}

	p := make([]float64, tissue.SCD.NumParameters())
	s := make([]complex128, v.seq.Size())
	prob := &problem{
		m:     v.seq.Size(),
		lower: []float64{0, minRelaxation},
		upper: []float64{math.Inf(1), maxRelaxation},
		residuals: func(dst, x []float64) error {
			return v.residuals(dst, x[0], x[1], p, s)
		},
	}
	x, err := e.opts.solve(prob, x0, e.opts.MaxIterations*(v.seq.Size()+1))
	if err != nil {
		return 0, 0, errs.Diverged("despot1", "nonlinear fit failed: %v", err)
	}
	return x[0], x[1], nil
}

// solve runs the configured minimiser.
func (o Options) solve(p *problem, x0 []float64, budget int) ([]float64, error) {
	if o.Method == MethodLM {
		x, _, err := levenberg(p, x0, budget, o.Tolerance)
		return x, err
	}
	return minimize(o.Method, p, x0, budget, o.Tolerance)
}
