package signal

import "math"

// AFI is the actual flip-angle imaging pair: one flip angle, two interleaved
// repetition times, two signals.
func AFI(dst []complex128, flip, TR1, TR2 float64, t *Tissue) error {
	const op = "afi"
	if err := checkLen(op, dst, 2); err != nil {
		return err
	}
	if err := single(op, t); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}

	T1 := t.Pools[0].T1
	E1 := math.Exp(-TR1 / T1)
	E2 := math.Exp(-TR2 / T1)
	a := flip * t.B1
	sa, ca := math.Sin(a), math.Cos(a)
	d := 1 - E1*E2*ca*ca
	if d == 0 {
		return errDegenerate(op)
	}
	dst[0] = complex(t.PD*sa*(1-E2+(1-E1)*E2*ca)/d, 0)
	dst[1] = complex(t.PD*sa*(1-E1+(1-E2)*E1*ca)/d, 0)
	return nil
}

// MultiEcho is mono-exponential transverse decay per compartment,
// S(TE) = PD sum_i f_i exp(-TE/T2_i). Exchange is not modelled.
func MultiEcho(dst []complex128, te []float64, t *Tissue) error {
	const op = "multi-echo"
	if err := checkLen(op, dst, len(te)); err != nil {
		return err
	}
	if err := t.requireT2(op); err != nil {
		return err
	}
	for i, e := range te {
		var s float64
		for j := 0; j < t.N; j++ {
			s += t.Pools[j].Fraction * math.Exp(-e/t.Pools[j].T2)
		}
		dst[i] = complex(t.PD*s, 0)
	}
	return nil
}
