package signal

import (
	"math"

	"qimap/pkg/errs"
)

// InversionTiming describes an inversion-prepared gradient-echo readout.
type InversionTiming struct {
	// TR is the spacing of the readout excitations in seconds.
	TR float64
	// Flip is the readout flip angle in radians.
	Flip float64
	// Readout is the number of excitations per inversion.
	Readout int
	// Center is the index of the excitation that samples the k-space centre.
	Center int
	// TD is the delay between the end of the readout and the next inversion.
	TD float64
	// Efficiency scales the inversion; 1 is a perfect inversion.
	Efficiency float64
}

// InversionRecovery writes one value per inversion time. TI is measured
// from the inversion to the k-space centre excitation.
//
// During the readout the longitudinal magnetization relaxes towards
// M0* = M0 (1 - E1)/(1 - E1 cos a) with the apparent rate
// 1/T1* = 1/T1 - ln(cos a)/TR; the steady state over a full inversion cycle
// gives the magnetization at the first readout excitation.
func InversionRecovery(dst []complex128, ti []float64, it InversionTiming, t *Tissue) error {
	const op = "inversion-recovery"
	if err := checkLen(op, dst, len(ti)); err != nil {
		return err
	}
	if err := single(op, t); err != nil {
		return err
	}
	if err := t.requireT1(op); err != nil {
		return err
	}

	T1 := t.Pools[0].T1
	M0 := t.PD
	a := it.Flip * t.B1
	ca := math.Cos(a)
	if ca <= 0 {
		return errs.Domain(op, "readout flip %g rad must stay below 90 degrees", a)
	}
	T1s := 1 / (1/T1 - math.Log(ca)/it.TR)
	M0s := M0 * (1 - math.Exp(-it.TR/T1)) / (1 - math.Exp(-it.TR/T1s))
	N := float64(it.Readout)
	k0 := float64(it.Center)

	A1 := M0s * (1 - math.Exp(-N*it.TR/T1s))
	B1 := math.Exp(-N * it.TR / T1s)
	A2 := M0 * (1 - math.Exp(-it.TD/T1))
	B2 := math.Exp(-it.TD / T1)
	for i, inv := range ti {
		tis := inv - k0*it.TR
		A3 := M0 * (1 - math.Exp(-tis/T1))
		B3 := -it.Efficiency * math.Exp(-tis/T1)
		A := A3 + A2*B3 + A1*B2*B3
		B := B1 * B2 * B3
		if B == 1 {
			return errDegenerate(op)
		}
		M1 := A / (1 - B)
		dst[i] = complex(math.Sin(a)*(M0s+(M1-M0s)*math.Exp(-k0*it.TR/T1s)), 0)
	}
	return nil
}
