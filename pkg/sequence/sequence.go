// Package sequence holds the acquisition descriptors: the known constants of
// one scan (flip angles, repetition and echo times) together with the signal
// equation that applies to them.
//
// Descriptors are immutable after construction and safe to share between
// goroutines. Angles are in radians and times in seconds; Spec converts from
// the degrees used in descriptor files.
package sequence

import (
	"math"

	"qimap/pkg/errs"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// Compile-time checks that every descriptor satisfies the signal contract.
var (
	_ signal.Sequence = (*SPGR)(nil)
	_ signal.Sequence = (*SPGRFinite)(nil)
	_ signal.Sequence = (*SSFP)(nil)
	_ signal.Sequence = (*SSFPFinite)(nil)
	_ signal.Sequence = (*SSFPEllipse)(nil)
	_ signal.Sequence = (*IRSPGR)(nil)
	_ signal.Sequence = (*MPRAGE)(nil)
	_ signal.Sequence = (*AFI)(nil)
	_ signal.Sequence = (*MultiEcho)(nil)
)

// SPGR is a spoiled gradient-echo (DESPOT1) series.
type SPGR struct {
	flip []float64
	tr   float64
}

// NewSPGR validates and copies the flip angles.
func NewSPGR(flip []float64, TR float64) (*SPGR, error) {
	const op = "spgr"
	if err := checkAngles(op, flip); err != nil {
		return nil, err
	}
	if err := checkPositive(op, "TR", TR); err != nil {
		return nil, err
	}
	return &SPGR{flip: clone(flip), tr: TR}, nil
}

func (s *SPGR) Name() string { return "SPGR" }
func (s *SPGR) Size() int    { return len(s.flip) }

// Flip returns the nominal flip angles. The slice must not be modified.
func (s *SPGR) Flip() []float64 { return s.flip }

// TR returns the repetition time.
func (s *SPGR) TR() float64 { return s.tr }

func (s *SPGR) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.SPGR(dst, s.flip, s.tr, &t)
}

// SPGRFinite is SPGR with a finite pulse duration and echo time.
type SPGRFinite struct {
	flip        []float64
	tr, trf, te float64
}

func NewSPGRFinite(flip []float64, TR, Trf, TE float64) (*SPGRFinite, error) {
	const op = "spgr-finite"
	if err := checkAngles(op, flip); err != nil {
		return nil, err
	}
	if err := checkPositive(op, "TR", TR); err != nil {
		return nil, err
	}
	if !(Trf >= 0 && Trf < TR) {
		return nil, errs.Contract(op, "pulse length %g must lie in [0, TR)", Trf)
	}
	if !(TE >= 0 && TE < TR) {
		return nil, errs.Contract(op, "echo time %g must lie in [0, TR)", TE)
	}
	return &SPGRFinite{flip: clone(flip), tr: TR, trf: Trf, te: TE}, nil
}

func (s *SPGRFinite) Name() string { return "SPGRFinite" }
func (s *SPGRFinite) Size() int    { return len(s.flip) }

func (s *SPGRFinite) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.SPGRFinite(dst, s.flip, s.tr, s.trf, s.te, &t)
}

// AFI is an actual flip-angle imaging pair.
type AFI struct {
	flip     float64
	tr1, tr2 float64
}

func NewAFI(flip, TR1, TR2 float64) (*AFI, error) {
	const op = "afi"
	if err := checkAngles(op, []float64{flip}); err != nil {
		return nil, err
	}
	if err := checkPositive(op, "TR1", TR1); err != nil {
		return nil, err
	}
	if err := checkPositive(op, "TR2", TR2); err != nil {
		return nil, err
	}
	return &AFI{flip: flip, tr1: TR1, tr2: TR2}, nil
}

func (s *AFI) Name() string { return "AFI" }
func (s *AFI) Size() int    { return 2 }

func (s *AFI) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.AFI(dst, s.flip, s.tr1, s.tr2, &t)
}

// MultiEcho is a multi-echo spin-echo train.
type MultiEcho struct {
	te []float64
	tr float64
}

func NewMultiEcho(TE []float64, TR float64) (*MultiEcho, error) {
	const op = "multi-echo"
	if len(TE) == 0 {
		return nil, errs.Contract(op, "no echo times")
	}
	for _, e := range TE {
		if err := checkPositive(op, "TE", e); err != nil {
			return nil, err
		}
	}
	if err := checkPositive(op, "TR", TR); err != nil {
		return nil, err
	}
	return &MultiEcho{te: clone(TE), tr: TR}, nil
}

func (s *MultiEcho) Name() string { return "MultiEcho" }
func (s *MultiEcho) Size() int    { return len(s.te) }

// TE returns the echo times. The slice must not be modified.
func (s *MultiEcho) TE() []float64 { return s.te }

// TR returns the repetition time.
func (s *MultiEcho) TR() float64 { return s.tr }

func (s *MultiEcho) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.MultiEcho(dst, s.te, &t)
}

func checkAngles(op string, flip []float64) error {
	if len(flip) == 0 {
		return errs.Contract(op, "no flip angles")
	}
	for _, a := range flip {
		if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 {
			return errs.Contract(op, "invalid flip angle %g", a)
		}
	}
	return nil
}

func checkPositive(op, name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errs.Contract(op, "%s = %g must be positive", name, v)
	}
	return nil
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
