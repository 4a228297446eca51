package sequence

import (
	"qimap/pkg/errs"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// IRSPGR is an inversion-prepared spoiled gradient echo with centric
// ordering and perfect inversion, one measurement per inversion time.
type IRSPGR struct {
	ti     []float64
	timing signal.InversionTiming
}

func NewIRSPGR(TI []float64, TR, flip float64, readout int, TD float64) (*IRSPGR, error) {
	it := signal.InversionTiming{TR: TR, Flip: flip, Readout: readout, Center: 0, TD: TD, Efficiency: 1}
	if err := checkInversion("irspgr", TI, it); err != nil {
		return nil, err
	}
	return &IRSPGR{ti: clone(TI), timing: it}, nil
}

func (s *IRSPGR) Name() string { return "IRSPGR" }
func (s *IRSPGR) Size() int    { return len(s.ti) }

func (s *IRSPGR) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.InversionRecovery(dst, s.ti, s.timing, &t)
}

// MPRAGE is a magnetization-prepared rapid gradient echo with an arbitrary
// k-space centre and inversion efficiency.
type MPRAGE struct {
	ti     []float64
	timing signal.InversionTiming
}

func NewMPRAGE(TI []float64, it signal.InversionTiming) (*MPRAGE, error) {
	if err := checkInversion("mprage", TI, it); err != nil {
		return nil, err
	}
	return &MPRAGE{ti: clone(TI), timing: it}, nil
}

func (s *MPRAGE) Name() string { return "MPRAGE" }
func (s *MPRAGE) Size() int    { return len(s.ti) }

func (s *MPRAGE) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.InversionRecovery(dst, s.ti, s.timing, &t)
}

func checkInversion(op string, TI []float64, it signal.InversionTiming) error {
	if len(TI) == 0 {
		return errs.Contract(op, "no inversion times")
	}
	if err := checkPositive(op, "TR", it.TR); err != nil {
		return err
	}
	if err := checkAngles(op, []float64{it.Flip}); err != nil {
		return err
	}
	if it.Readout < 1 {
		return errs.Contract(op, "readout length %d must be at least 1", it.Readout)
	}
	if it.Center < 0 || it.Center >= it.Readout {
		return errs.Contract(op, "k-space centre %d outside readout of %d", it.Center, it.Readout)
	}
	if it.TD < 0 {
		return errs.Contract(op, "delay TD = %g must not be negative", it.TD)
	}
	if !(it.Efficiency > 0 && it.Efficiency <= 1) {
		return errs.Contract(op, "inversion efficiency %g must lie in (0, 1]", it.Efficiency)
	}
	for _, ti := range TI {
		if ti-float64(it.Center)*it.TR <= 0 {
			return errs.Contract(op, "TI = %g is shorter than the readout before the k-space centre", ti)
		}
	}
	return nil
}
