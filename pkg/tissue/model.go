// Package tissue declares the tissue models understood by the signal library.
//
// A model is pure metadata: it fixes the order, count, names and default values
// of the parameter vector. The signal equations interpret the vector
// positionally, so every sequence can be paired with every model that it
// supports without any conversion step.
package tissue

import (
	"strings"

	"qimap/pkg/errs"
)

// Model identifies one of the fixed set of tissue models.
type Model int

const (
	// SCD is the single-compartment model.
	SCD Model = iota
	// MCD2 is two exchanging compartments (myelin water and intra/extra-cellular water).
	MCD2
	// MCD3 adds a non-exchanging free-water compartment to MCD2.
	MCD3
)

// Models lists every model in declaration order.
var Models = []Model{SCD, MCD2, MCD3}

var (
	scdNames  = []string{"PD", "T1", "T2", "f0", "B1"}
	mcd2Names = []string{"PD", "T1_a", "T2_a", "T1_b", "T2_b", "tau_a", "f_a", "f0", "B1"}
	mcd3Names = []string{"PD", "T1_a", "T2_a", "T1_b", "T2_b", "T1_c", "T2_c", "tau_a", "f_a", "f_c", "f0", "B1"}

	// Times in seconds, f0 in Hz.
	scdDefaults  = []float64{1, 1.0, 0.1, 0, 1}
	mcd2Defaults = []float64{1, 0.465, 0.026, 1.070, 0.117, 0.18, 0.2, 0, 1}
	mcd3Defaults = []float64{1, 0.465, 0.026, 1.070, 0.117, 4.0, 2.0, 0.18, 0.2, 0.05, 0, 1}
)

// Name returns the short name of the model.
func (m Model) Name() string {
	switch m {
	case SCD:
		return "1C"
	case MCD2:
		return "2C"
	case MCD3:
		return "3C"
	default:
		return "unknown"
	}
}

func (m Model) String() string { return m.Name() }

// Valid reports whether m is one of the declared models.
func (m Model) Valid() bool {
	return m >= SCD && m <= MCD3
}

// Components returns the number of compartments.
func (m Model) Components() int {
	switch m {
	case SCD:
		return 1
	case MCD2:
		return 2
	case MCD3:
		return 3
	default:
		return 0
	}
}

// NumParameters returns the declared length of the parameter vector.
func (m Model) NumParameters() int {
	return len(m.names())
}

// Names returns a copy of the ordered parameter names.
func (m Model) Names() []string {
	return append([]string(nil), m.names()...)
}

// Defaults returns a fresh parameter vector filled with sane default values.
func (m Model) Defaults() []float64 {
	switch m {
	case SCD:
		return append([]float64(nil), scdDefaults...)
	case MCD2:
		return append([]float64(nil), mcd2Defaults...)
	case MCD3:
		return append([]float64(nil), mcd3Defaults...)
	default:
		return nil
	}
}

// Index returns the position of the named parameter, or -1.
func (m Model) Index(name string) int {
	for i, n := range m.names() {
		if n == name {
			return i
		}
	}
	return -1
}

// Check returns a ContractError unless p has exactly NumParameters entries.
func (m Model) Check(p []float64) error {
	if !m.Valid() {
		return errs.Contract("tissue", "unknown model %d", int(m))
	}
	if len(p) != m.NumParameters() {
		return errs.Contract("tissue", "%s model takes %d parameters, got %d", m.Name(), m.NumParameters(), len(p))
	}
	return nil
}

func (m Model) names() []string {
	switch m {
	case SCD:
		return scdNames
	case MCD2:
		return mcd2Names
	case MCD3:
		return mcd3Names
	default:
		return nil
	}
}

// Parse resolves a model from its command-line spelling ("1", "1C", "SCD", ...).
func Parse(s string) (Model, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "1C", "SCD":
		return SCD, nil
	case "2", "2C", "MCD2":
		return MCD2, nil
	case "3", "3C", "MCD3":
		return MCD3, nil
	default:
		return SCD, errs.Contract("tissue", "unknown model %q", s)
	}
}
