// Package signal is the library of forward steady-state signal equations.
//
// Every equation is a pure function of a Tissue (a parameter vector
// interpreted through its tissue.Model) and the timing constants of one
// acquisition. Results are written into caller-provided buffers so repeated
// evaluation, as done by numerical differencing inside the estimators, does
// not allocate on the common single-compartment paths.
//
// Evaluations outside the physical domain (non-positive relaxation times,
// singular steady-state systems) fail with an errs.DomainError instead of
// returning NaN or Inf.
package signal

import (
	"math/cmplx"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"qimap/pkg/errs"
	"qimap/pkg/tissue"
)

// Sequence is the contract every acquisition descriptor implements.
//
// Signal writes Size() predicted measurements into dst, ordered exactly as
// the descriptor orders its acquisition conditions. Adding a sequence means
// adding a type that satisfies this interface; existing sequences and
// models are unaffected.
type Sequence interface {
	Name() string
	Size() int
	Signal(dst []complex128, m tissue.Model, p []float64) error
}

// Evaluate allocates a result buffer and evaluates seq.
func Evaluate(seq Sequence, m tissue.Model, p []float64) ([]complex128, error) {
	dst := make([]complex128, seq.Size())
	if err := seq.Signal(dst, m, p); err != nil {
		return nil, err
	}
	return dst, nil
}

// Magnitude writes |s[i]| into dst.
func Magnitude(dst []float64, s []complex128) {
	for i, v := range s {
		dst[i] = cmplx.Abs(v)
	}
}

// Synthesize evaluates seq and adds complex Gaussian noise with standard
// deviation sigma to the real and imaginary part of every condition.
// A nil src draws from the global source.
func Synthesize(seq Sequence, m tissue.Model, p []float64, sigma float64, src rand.Source) ([]complex128, error) {
	if sigma < 0 {
		return nil, errs.Contract("synthesize", "noise sigma %g must not be negative", sigma)
	}
	s, err := Evaluate(seq, m, p)
	if err != nil {
		return nil, err
	}
	if sigma > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
		for i := range s {
			re := noise.Rand()
			im := noise.Rand()
			s[i] += complex(re, im)
		}
	}
	return s, nil
}

// checkLen guards the buffer contract shared by all equations.
func checkLen(op string, dst []complex128, want int) error {
	if len(dst) != want {
		return errs.Contract(op, "output buffer holds %d values, want %d", len(dst), want)
	}
	return nil
}

// single rejects multi-compartment tissues for equations that only exist in
// single-compartment form.
func single(op string, t *Tissue) error {
	if t.N != 1 {
		return errs.Contract(op, "no %d-compartment form of this equation", t.N)
	}
	return nil
}

func errDegenerate(op string) error {
	return errs.Domain(op, "degenerate denominator")
}
