package signal

import (
	"math"

	"qimap/pkg/errs"
	"qimap/pkg/tissue"
)

// maxPools is the largest number of compartments any tissue model declares.
const maxPools = 3

// Pool is one compartment of a tissue.
type Pool struct {
	// Fraction is the share of the total proton density held by this pool.
	Fraction float64
	// T1 and T2 are relaxation times in seconds.
	T1, T2 float64
}

// Tissue is a parameter vector interpreted through its tissue model.
//
// Fixed-size arrays keep Decompose allocation-free, which matters for the
// repeated evaluations made by numerical differencing.
type Tissue struct {
	PD float64
	// F0 is the off-resonance frequency in Hz.
	F0 float64
	// B1 scales every nominal flip angle.
	B1 float64

	N     int
	Pools [maxPools]Pool
	// Exchange[i][j] is the first-order rate (1/s) from pool i into pool j.
	Exchange [maxPools][maxPools]float64
}

// Decompose interprets p according to m. Lengths are checked against the
// model declaration; fractions and exchange times are checked for physical
// validity. Relaxation times are checked by each equation for the values it
// actually uses.
func Decompose(m tissue.Model, p []float64) (Tissue, error) {
	var t Tissue
	if err := m.Check(p); err != nil {
		return t, err
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return t, errs.Domain("tissue", "parameter %s is not finite", m.Names()[i])
		}
	}

	switch m {
	case tissue.SCD:
		t.PD, t.F0, t.B1 = p[0], p[3], p[4]
		t.N = 1
		t.Pools[0] = Pool{Fraction: 1, T1: p[1], T2: p[2]}
	case tissue.MCD2:
		t.PD, t.F0, t.B1 = p[0], p[7], p[8]
		fa := p[6]
		if fa < 0 || fa > 1 {
			return t, errs.Domain("tissue", "f_a = %g outside [0, 1]", fa)
		}
		t.N = 2
		t.Pools[0] = Pool{Fraction: fa, T1: p[1], T2: p[2]}
		t.Pools[1] = Pool{Fraction: 1 - fa, T1: p[3], T2: p[4]}
		if err := t.setExchange(p[5]); err != nil {
			return t, err
		}
	case tissue.MCD3:
		t.PD, t.F0, t.B1 = p[0], p[10], p[11]
		fa, fc := p[8], p[9]
		if fa < 0 || fa > 1 || fc < 0 || fc > 1 || fa+fc > 1 {
			return t, errs.Domain("tissue", "fractions f_a = %g, f_c = %g are not a partition", fa, fc)
		}
		t.N = 3
		t.Pools[0] = Pool{Fraction: fa, T1: p[1], T2: p[2]}
		t.Pools[1] = Pool{Fraction: 1 - fa - fc, T1: p[3], T2: p[4]}
		t.Pools[2] = Pool{Fraction: fc, T1: p[5], T2: p[6]}
		if err := t.setExchange(p[7]); err != nil {
			return t, err
		}
	}
	return t, nil
}

// setExchange fills the a<->b rates from the residence time of pool a,
// keeping detailed balance so equilibrium is preserved.
func (t *Tissue) setExchange(tauA float64) error {
	if tauA <= 0 {
		return errs.Domain("tissue", "tau_a = %g must be positive", tauA)
	}
	fa, fb := t.Pools[0].Fraction, t.Pools[1].Fraction
	kab := 1 / tauA
	if fa == 0 {
		return nil
	}
	if fb == 0 {
		return errs.Domain("tissue", "exchange into an empty compartment is singular")
	}
	t.Exchange[0][1] = kab
	t.Exchange[1][0] = kab * fa / fb
	return nil
}

// requireT1 fails unless every populated pool has a positive T1.
func (t *Tissue) requireT1(op string) error {
	for i := 0; i < t.N; i++ {
		if !(t.Pools[i].T1 > 0) {
			return errs.Domain(op, "T1 = %g must be positive", t.Pools[i].T1)
		}
	}
	return nil
}

// requireT2 fails unless every populated pool has a positive T2.
func (t *Tissue) requireT2(op string) error {
	for i := 0; i < t.N; i++ {
		if !(t.Pools[i].T2 > 0) {
			return errs.Domain(op, "T2 = %g must be positive", t.Pools[i].T2)
		}
	}
	return nil
}
