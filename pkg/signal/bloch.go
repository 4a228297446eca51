package signal

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"qimap/pkg/errs"
)

// Bloch-McConnell propagators in homogeneous coordinates.
//
// The state of an n-pool tissue is (Mx, My, Mz) per pool followed by a
// constant 1, so relaxation towards equilibrium is a linear map and a whole
// repetition is a single (3n+1)x(3n+1) matrix. Matrices are built per
// condition; the cost is small next to the matrix exponential.

// maxCond bounds the condition number accepted for a steady-state solve.
const maxCond = 1e12

type bloch struct {
	t *Tissue
	n int
	// relaxT2 disables transverse relaxation when the caller only needs the
	// longitudinal state (ideally spoiled sequences with instantaneous pulses).
	relaxT2 bool
}

func newBloch(t *Tissue, relaxT2 bool) *bloch {
	return &bloch{t: t, n: t.N, relaxT2: relaxT2}
}

func (b *bloch) dim() int { return 3*b.n + 1 }

// generator returns dM/dt = L M for off-resonance omega (rad/s) and an RF
// field of strength omega1 (rad/s) about x.
func (b *bloch) generator(omega, omega1 float64) *mat.Dense {
	d := b.dim()
	L := mat.NewDense(d, d, nil)
	for i := 0; i < b.n; i++ {
		p := b.t.Pools[i]
		x, y, z := 3*i, 3*i+1, 3*i+2
		r1 := 1 / p.T1
		r2 := 0.0
		if b.relaxT2 {
			r2 = 1 / p.T2
		}
		m0 := b.t.PD * p.Fraction

		L.Set(x, x, -r2)
		L.Set(x, y, omega)
		L.Set(y, x, -omega)
		L.Set(y, y, -r2)
		L.Set(y, z, -omega1)
		L.Set(z, y, omega1)
		L.Set(z, z, -r1)
		L.Set(z, d-1, r1*m0)
	}
	for i := 0; i < b.n; i++ {
		for j := 0; j < b.n; j++ {
			k := b.t.Exchange[i][j]
			if i == j || k == 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				L.Set(3*i+c, 3*i+c, L.At(3*i+c, 3*i+c)-k)
				L.Set(3*j+c, 3*i+c, L.At(3*j+c, 3*i+c)+k)
			}
		}
	}
	return L
}

// evolve returns the propagator for dt seconds of free precession.
func (b *bloch) evolve(dt, omega float64) *mat.Dense {
	return b.expm(b.generator(omega, 0), dt)
}

// pulse returns the propagator of a rectangular pulse of angle alpha.
// A zero duration gives an instantaneous rotation.
func (b *bloch) pulse(alpha, dur, omega float64) *mat.Dense {
	if dur <= 0 {
		return b.rotation(alpha)
	}
	return b.expm(b.generator(omega, alpha/dur), dur)
}

func (b *bloch) expm(L *mat.Dense, dt float64) *mat.Dense {
	var scaled, out mat.Dense
	scaled.Scale(dt, L)
	out.Exp(&scaled)
	return &out
}

// rotation is an instantaneous rotation about x, applied to every pool.
func (b *bloch) rotation(alpha float64) *mat.Dense {
	d := b.dim()
	R := mat.NewDense(d, d, nil)
	c, s := math.Cos(alpha), math.Sin(alpha)
	for i := 0; i < b.n; i++ {
		x, y, z := 3*i, 3*i+1, 3*i+2
		R.Set(x, x, 1)
		R.Set(y, y, c)
		R.Set(y, z, -s)
		R.Set(z, y, s)
		R.Set(z, z, c)
	}
	R.Set(d-1, d-1, 1)
	return R
}

// spoiler destroys all transverse magnetization.
func (b *bloch) spoiler() *mat.Dense {
	d := b.dim()
	S := mat.NewDense(d, d, nil)
	for i := 0; i < b.n; i++ {
		S.Set(3*i+2, 3*i+2, 1)
	}
	S.Set(d-1, d-1, 1)
	return S
}

// chain multiplies ms[0]*ms[1]*...; the last matrix acts first.
func chain(ms ...*mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(out, m)
		out = &next
	}
	return out
}

// steadyState solves M = T M for the homogeneous state M.
func (b *bloch) steadyState(op string, T *mat.Dense) (*mat.VecDense, error) {
	k := 3 * b.n
	A := mat.NewDense(k, k, nil)
	rhs := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := -T.At(i, j)
			if i == j {
				v++
			}
			A.Set(i, j, v)
		}
		rhs.SetVec(i, T.At(i, k))
	}

	var lu mat.LU
	lu.Factorize(A)
	if c := lu.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > maxCond {
		return nil, errs.Domain(op, "singular steady-state system (condition %g)", c)
	}
	var m mat.VecDense
	if err := lu.SolveVecTo(&m, false, rhs); err != nil {
		return nil, errs.Domain(op, "steady-state solve failed: %v", err)
	}

	full := mat.NewVecDense(k+1, nil)
	for i := 0; i < k; i++ {
		full.SetVec(i, m.AtVec(i))
	}
	full.SetVec(k, 1)
	return full, nil
}

// readout applies P to M and sums the transverse magnetization of all pools.
// The receiver phase is aligned so an on-resonance excitation of
// equilibrium magnetization reads as a positive real number.
func (b *bloch) readout(P *mat.Dense, M *mat.VecDense) complex128 {
	var e mat.VecDense
	e.MulVec(P, M)
	var s complex128
	for i := 0; i < b.n; i++ {
		s += complex(-e.AtVec(3*i+1), e.AtVec(3*i))
	}
	return s
}
