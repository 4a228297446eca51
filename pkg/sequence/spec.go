package sequence

import (
	"math"
	"strings"

	"qimap/pkg/errs"
	"qimap/pkg/signal"
)

// Spec is the file representation of a descriptor. Angles are in degrees
// and times in seconds, matching how scanner protocols are written down.
type Spec struct {
	Type string `yaml:"type" toml:"type"`

	Flip   []float64 `yaml:"flip,omitempty" toml:"flip,omitempty"`
	Phases []float64 `yaml:"phases,omitempty" toml:"phases,omitempty"`
	TR     float64   `yaml:"tr,omitempty" toml:"tr,omitempty"`
	TR2    float64   `yaml:"tr2,omitempty" toml:"tr2,omitempty"`
	Trf    float64   `yaml:"trf,omitempty" toml:"trf,omitempty"`
	Echo   float64   `yaml:"echo,omitempty" toml:"echo,omitempty"`
	TE     []float64 `yaml:"te,omitempty" toml:"te,omitempty"`

	TI         []float64 `yaml:"ti,omitempty" toml:"ti,omitempty"`
	Readout    int       `yaml:"readout,omitempty" toml:"readout,omitempty"`
	Center     int       `yaml:"center,omitempty" toml:"center,omitempty"`
	TD         float64   `yaml:"td,omitempty" toml:"td,omitempty"`
	Efficiency float64   `yaml:"efficiency,omitempty" toml:"efficiency,omitempty"`

	// Output names the file a synthesized signal is written to.
	Output string `yaml:"output,omitempty" toml:"output,omitempty"`
}

// Types lists the descriptor names accepted by Build.
var Types = []string{"SPGR", "SPGRFinite", "SSFP", "SSFPFinite", "SSFPEllipse", "IRSPGR", "MPRAGE", "AFI", "SPINECHO"}

// Build validates s and constructs its descriptor.
func (s Spec) Build() (signal.Sequence, error) {
	flip := radians(s.Flip)
	phases := radians(s.Phases)
	if len(phases) == 0 {
		phases = []float64{math.Pi}
	}

	switch strings.ToUpper(s.Type) {
	case "SPGR":
		return NewSPGR(flip, s.TR)
	case "SPGRFINITE":
		return NewSPGRFinite(flip, s.TR, s.Trf, s.Echo)
	case "SSFP":
		return NewSSFP(flip, phases, s.TR)
	case "SSFPFINITE":
		return NewSSFPFinite(flip, phases, s.TR, s.Trf)
	case "SSFPELLIPSE":
		return NewSSFPEllipse(flip, s.TR)
	case "IRSPGR":
		a, err := one("irspgr", flip)
		if err != nil {
			return nil, err
		}
		return NewIRSPGR(s.TI, s.TR, a, max(s.Readout, 1), s.TD)
	case "MPRAGE":
		a, err := one("mprage", flip)
		if err != nil {
			return nil, err
		}
		eff := s.Efficiency
		if eff == 0 {
			eff = 1
		}
		return NewMPRAGE(s.TI, signal.InversionTiming{
			TR: s.TR, Flip: a, Readout: s.Readout, Center: s.Center, TD: s.TD, Efficiency: eff,
		})
	case "AFI":
		a, err := one("afi", flip)
		if err != nil {
			return nil, err
		}
		return NewAFI(a, s.TR, s.TR2)
	case "SPINECHO", "MULTIECHO":
		return NewMultiEcho(s.TE, s.TR)
	default:
		return nil, errs.Contract("sequence", "unknown sequence type %q", s.Type)
	}
}

func one(op string, flip []float64) (float64, error) {
	if len(flip) != 1 {
		return 0, errs.Contract(op, "want exactly one flip angle, got %d", len(flip))
	}
	return flip[0], nil
}

func radians(deg []float64) []float64 {
	if deg == nil {
		return nil
	}
	out := make([]float64, len(deg))
	for i, d := range deg {
		out[i] = d * math.Pi / 180
	}
	return out
}
