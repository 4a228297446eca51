package signal

import "math"

// SPGR is the ideally spoiled gradient-echo steady state, one value per
// flip angle (radians, scaled by B1). Single-compartment tissues use the
// closed form
//
//	S = PD sin(a) (1 - E1) / (1 - E1 cos(a)),  E1 = exp(-TR/T1)
//
// and multi-compartment tissues the exchanging longitudinal steady state.
func SPGR(dst []complex128, flip []float64, TR float64, t *Tissue) error {
	const op = "spgr"
	if err := checkLen(op, dst, len(flip)); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}
	if t.N > 1 {
		return spgrExchange(op, dst, flip, TR, 0, 0, t)
	}

	E1 := math.Exp(-TR / t.Pools[0].T1)
	for i, a := range flip {
		a *= t.B1
		dst[i] = complex(t.PD*math.Sin(a)*(1-E1)/(1-E1*math.Cos(a)), 0)
	}
	return nil
}

// SPGRFinite accounts for relaxation during a rectangular pulse of length
// trf and for transverse decay up to the echo time te (measured from the
// pulse centre). It reduces to SPGR as trf and te approach zero.
func SPGRFinite(dst []complex128, flip []float64, TR, trf, te float64, t *Tissue) error {
	const op = "spgr-finite"
	if err := checkLen(op, dst, len(flip)); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}
	if err := t.requireT2(op); err != nil {
		return err
	}
	return spgrExchange(op, dst, flip, TR, trf, te, t)
}

func spgrExchange(op string, dst []complex128, flip []float64, TR, trf, te float64, t *Tissue) error {
	finite := trf > 0 || te > 0
	b := newBloch(t, finite)
	omega := 2 * math.Pi * t.F0

	free := b.evolve(TR-trf, omega)
	spoil := b.spoiler()
	echo := b.evolve(math.Max(te-trf/2, 0), omega)
	for i, a := range flip {
		P := b.pulse(a*t.B1, trf, omega)
		M, err := b.steadyState(op, chain(spoil, free, P))
		if err != nil {
			return err
		}
		dst[i] = b.readout(chain(echo, P), M)
	}
	return nil
}
