package sequence

import (
	"qimap/pkg/errs"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// SSFP is a balanced SSFP series acquired at every combination of flip angle
// and RF phase increment, ordered phase-major.
type SSFP struct {
	flip, phases []float64
	tr           float64
}

func NewSSFP(flip, phases []float64, TR float64) (*SSFP, error) {
	const op = "ssfp"
	if err := checkAngles(op, flip); err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, errs.Contract(op, "no phase increments")
	}
	if err := checkPositive(op, "TR", TR); err != nil {
		return nil, err
	}
	return &SSFP{flip: clone(flip), phases: clone(phases), tr: TR}, nil
}

func (s *SSFP) Name() string { return "SSFP" }
func (s *SSFP) Size() int    { return len(s.flip) * len(s.phases) }

func (s *SSFP) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.SSFP(dst, s.flip, s.phases, s.tr, &t)
}

// SSFPFinite is SSFP with a finite pulse duration.
type SSFPFinite struct {
	flip, phases []float64
	tr, trf      float64
}

func NewSSFPFinite(flip, phases []float64, TR, Trf float64) (*SSFPFinite, error) {
	const op = "ssfp-finite"
	base, err := NewSSFP(flip, phases, TR)
	if err != nil {
		return nil, err
	}
	if !(Trf >= 0 && Trf < TR) {
		return nil, errs.Contract(op, "pulse length %g must lie in [0, TR)", Trf)
	}
	return &SSFPFinite{flip: base.flip, phases: base.phases, tr: TR, trf: Trf}, nil
}

func (s *SSFPFinite) Name() string { return "SSFPFinite" }
func (s *SSFPFinite) Size() int    { return len(s.flip) * len(s.phases) }

func (s *SSFPFinite) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.SSFPFinite(dst, s.flip, s.phases, s.tr, s.trf, &t)
}

// SSFPEllipse describes balanced SSFP by its ellipse parameters (G, a, b),
// three values per flip angle.
type SSFPEllipse struct {
	flip []float64
	tr   float64
}

func NewSSFPEllipse(flip []float64, TR float64) (*SSFPEllipse, error) {
	const op = "ssfp-ellipse"
	if err := checkAngles(op, flip); err != nil {
		return nil, err
	}
	if err := checkPositive(op, "TR", TR); err != nil {
		return nil, err
	}
	return &SSFPEllipse{flip: clone(flip), tr: TR}, nil
}

func (s *SSFPEllipse) Name() string { return "SSFPEllipse" }
func (s *SSFPEllipse) Size() int    { return 3 * len(s.flip) }

func (s *SSFPEllipse) Signal(dst []complex128, m tissue.Model, p []float64) error {
	t, err := signal.Decompose(m, p)
	if err != nil {
		return err
	}
	return signal.SSFPEllipse(dst, s.flip, s.tr, &t)
}
