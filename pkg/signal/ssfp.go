package signal

import "math"

// SSFP is the balanced steady-state free precession signal at TE = TR/2.
// Conditions are ordered phase-major: dst[p*len(flip)+f] holds phase
// increment phases[p] (radians per TR) and flip angle flip[f].
func SSFP(dst []complex128, flip, phases []float64, TR float64, t *Tissue) error {
	return ssfp("ssfp", dst, flip, phases, TR, 0, t)
}

// SSFPFinite is SSFP with relaxation and precession during a rectangular
// pulse of length trf. The echo stays at the centre of the repetition.
func SSFPFinite(dst []complex128, flip, phases []float64, TR, trf float64, t *Tissue) error {
	return ssfp("ssfp-finite", dst, flip, phases, TR, trf, t)
}

func ssfp(op string, dst []complex128, flip, phases []float64, TR, trf float64, t *Tissue) error {
	if err := checkLen(op, dst, len(flip)*len(phases)); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}
	if err := t.requireT2(op); err != nil {
		return err
	}

	b := newBloch(t, true)
	for p, phi := range phases {
		// RF phase cycling is equivalent to extra precession of phi per TR.
		omega := 2*math.Pi*t.F0 + phi/TR
		free := b.evolve(TR-trf, omega)
		half := b.evolve((TR-trf)/2, omega)
		for f, a := range flip {
			P := b.pulse(a*t.B1, trf, omega)
			M, err := b.steadyState(op, chain(P, free))
			if err != nil {
				return err
			}
			dst[p*len(flip)+f] = b.readout(half, M)
		}
	}
	return nil
}

// SSFPEllipse writes the geometric parameters (G, a, b) of the ellipse traced
// by the balanced SSFP signal under phase cycling, three values per flip
// angle. Only single-compartment tissues have this closed form.
func SSFPEllipse(dst []complex128, flip []float64, TR float64, t *Tissue) error {
	const op = "ssfp-ellipse"
	if err := checkLen(op, dst, 3*len(flip)); err != nil {
		return err
	}
	if err := single(op, t); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}
	if err := t.requireT2(op); err != nil {
		return err
	}

	E1 := math.Exp(-TR / t.Pools[0].T1)
	E2 := math.Exp(-TR / t.Pools[0].T2)
	for i, a := range flip {
		a *= t.B1
		ca := math.Cos(a)
		d := (1 - E1*ca) - E2*E2*(E1-ca)
		if d == 0 {
			return errDegenerate(op)
		}
		dst[3*i] = complex(t.PD*math.Sin(a)*(1-E1)/d, 0)
		dst[3*i+1] = complex(E2, 0)
		dst[3*i+2] = complex(E2*(1-E1)*(1+ca)/d, 0)
	}
	return nil
}
