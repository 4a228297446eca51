// Package errs defines the error taxonomy shared by the signal library,
// the sequence descriptors and the estimators.
//
// Three kinds of failure are distinguished:
//   - ContractError: mismatched vector lengths, unknown names, unsupported
//     sequence/model pairs. These are programmer or configuration errors.
//   - DomainError: a forward model was evaluated outside its physical validity
//     (non-positive T1/T2, singular steady-state system).
//   - DivergedError: an estimator finished with a non-physical result. This is
//     an expected per-voxel outcome for noisy data.
//
// Use errors.Is(err, errs.ErrContract) (or ErrDomain / ErrDiverged) to classify
// an error regardless of how it has been wrapped.
package errs

import "fmt"

// Sentinels for errors.Is checks.
var (
	ErrContract = &ContractError{}
	ErrDomain   = &DomainError{}
	ErrDiverged = &DivergedError{}
)

// ContractError reports a violated calling contract.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	if e.Op == "" {
		return "contract violation: " + e.Msg
	}
	return e.Op + ": contract violation: " + e.Msg
}

func (e *ContractError) Is(target error) bool {
	_, ok := target.(*ContractError)
	return ok
}

// DomainError reports a forward-model evaluation outside its physical domain.
type DomainError struct {
	Op  string
	Msg string
}

func (e *DomainError) Error() string {
	if e.Op == "" {
		return "numerical domain error: " + e.Msg
	}
	return e.Op + ": numerical domain error: " + e.Msg
}

func (e *DomainError) Is(target error) bool {
	_, ok := target.(*DomainError)
	return ok
}

// DivergedError reports a fit that ended with a non-physical estimate.
type DivergedError struct {
	Op  string
	Msg string
}

func (e *DivergedError) Error() string {
	if e.Op == "" {
		return "fit diverged: " + e.Msg
	}
	return e.Op + ": fit diverged: " + e.Msg
}

func (e *DivergedError) Is(target error) bool {
	_, ok := target.(*DivergedError)
	return ok
}

// Contract builds a ContractError with a formatted message.
func Contract(op, format string, args ...interface{}) error {
	return &ContractError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Domain builds a DomainError with a formatted message.
func Domain(op, format string, args ...interface{}) error {
	return &DomainError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Diverged builds a DivergedError with a formatted message.
func Diverged(op, format string, args ...interface{}) error {
	return &DivergedError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
