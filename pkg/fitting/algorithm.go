package fitting

import (
	"qimap/pkg/errs"
	"qimap/pkg/sequence"
)

// Algorithm is an estimator bound to one acquisition, the form in which the
// mapping harness drives it voxel by voxel.
type Algorithm interface {
	// DataSize is the number of measurements per voxel.
	DataSize() int
	// NumConstants is the number of per-voxel side inputs.
	NumConstants() int
	NumOutputs() int
	OutputNames() []string
	// DefaultConstants are used for voxels without a constants series.
	DefaultConstants() []float64
	Apply(data, consts []float64) (Result, error)
}

type despot1Algorithm struct {
	e        *T1Estimator
	seq      *sequence.SPGR
	defaults []float64
}

// Bind fixes the acquisition. defaults, if given, replaces the default B1 of
// 1.0 and must hold exactly one value.
func (e *T1Estimator) Bind(seq *sequence.SPGR, defaults ...float64) (Algorithm, error) {
	if seq == nil {
		return nil, errs.Contract("despot1", "nil sequence")
	}
	d := []float64{1}
	if len(defaults) > 0 {
		if len(defaults) != 1 {
			return nil, errs.Contract("despot1", "want 1 default constant, got %d", len(defaults))
		}
		d = []float64{defaults[0]}
	}
	return &despot1Algorithm{e: e, seq: seq, defaults: d}, nil
}

func (a *despot1Algorithm) DataSize() int         { return a.seq.Size() }
func (a *despot1Algorithm) NumConstants() int     { return 1 }
func (a *despot1Algorithm) NumOutputs() int       { return 2 }
func (a *despot1Algorithm) OutputNames() []string { return a.e.OutputNames() }

func (a *despot1Algorithm) DefaultConstants() []float64 {
	return append([]float64(nil), a.defaults...)
}

func (a *despot1Algorithm) Apply(data, consts []float64) (Result, error) {
	if consts == nil {
		consts = a.defaults
	}
	return a.e.Estimate(a.seq, data, consts)
}

type multiEchoAlgorithm struct {
	e   *T2Estimator
	seq *sequence.MultiEcho
}

// Bind fixes the echo train.
func (e *T2Estimator) Bind(seq *sequence.MultiEcho) (Algorithm, error) {
	if seq == nil {
		return nil, errs.Contract("multi-echo", "nil sequence")
	}
	return &multiEchoAlgorithm{e: e, seq: seq}, nil
}

func (a *multiEchoAlgorithm) DataSize() int               { return a.seq.Size() }
func (a *multiEchoAlgorithm) NumConstants() int           { return 0 }
func (a *multiEchoAlgorithm) NumOutputs() int             { return 2 }
func (a *multiEchoAlgorithm) OutputNames() []string       { return a.e.OutputNames() }
func (a *multiEchoAlgorithm) DefaultConstants() []float64 { return nil }

func (a *multiEchoAlgorithm) Apply(data, consts []float64) (Result, error) {
	if len(consts) != 0 {
		return Result{}, errs.Contract("multi-echo", "takes no constants, got %d", len(consts))
	}
	return a.e.Estimate(a.seq, data)
}
