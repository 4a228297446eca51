package fitting

import (
	"math"
	"strings"

	"qimap/pkg/errs"
)

// Strategy selects how an estimator inverts the signal equation.
type Strategy int

const (
	// LLS is the closed-form linearised regression.
	LLS Strategy = iota
	// WLLS repeats the regression with weights evaluated at the current estimate.
	WLLS
	// NLLS minimises the magnitude residuals directly, seeded by LLS.
	NLLS
)

func (s Strategy) String() string {
	switch s {
	case LLS:
		return "LLS"
	case WLLS:
		return "WLLS"
	case NLLS:
		return "NLLS"
	default:
		return "Strategy(?)"
	}
}

// ParseStrategy accepts the single-letter command-line codes (l, w, n) as
// well as the full names.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "lls":
		return LLS, nil
	case "w", "wlls":
		return WLLS, nil
	case "n", "nlls":
		return NLLS, nil
	}
	return 0, errs.Contract("strategy", "unknown algorithm %q, want one of l, w, n", s)
}

// Minimiser names accepted in Options.Method.
const (
	MethodLM         = "lm"
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
)

// Seed policies accepted in Options.Seed.
const (
	SeedClosedForm = "closed-form"
	SeedMayfly     = "mayfly"
)

// Options configures an estimator. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Strategy Strategy

	// MaxIterations is the number of reweighting passes for WLLS and scales
	// the evaluation budget of NLLS.
	MaxIterations int

	// Method picks the NLLS minimiser.
	Method string

	// Seed picks how NLLS is started: from the closed-form estimate or from a
	// mayfly global search over T1.
	Seed string

	// Tolerance on relative step and relative cost decrease for NLLS.
	Tolerance float64

	// Global seeding controls, used only when Seed is SeedMayfly.
	SeedIterations int
	SeedPopulation int
	RandSeed       int64
}

// DefaultOptions returns the settings used when nothing else is given.
func DefaultOptions() Options {
	return Options{
		Strategy:       LLS,
		MaxIterations:  4,
		Method:         MethodLM,
		Seed:           SeedClosedForm,
		Tolerance:      1e-10,
		SeedIterations: 50,
		SeedPopulation: 20,
		RandSeed:       1,
	}
}

// Validate reports the first invalid setting as a ContractError.
func (o Options) Validate() error {
	const op = "options"
	switch o.Strategy {
	case LLS, WLLS, NLLS:
	default:
		return errs.Contract(op, "unknown strategy %d", int(o.Strategy))
	}
	if o.MaxIterations < 0 {
		return errs.Contract(op, "max iterations %d must not be negative", o.MaxIterations)
	}
	switch o.Method {
	case MethodLM, MethodNelderMead, MethodBFGS:
	default:
		return errs.Contract(op, "unknown minimiser %q", o.Method)
	}
	switch o.Seed {
	case SeedClosedForm:
	case SeedMayfly:
		if o.SeedIterations < 1 {
			return errs.Contract(op, "seed iterations %d must be positive", o.SeedIterations)
		}
		if o.SeedPopulation < 20 {
			return errs.Contract(op, "seed population %d must be at least 20", o.SeedPopulation)
		}
	default:
		return errs.Contract(op, "unknown seed policy %q", o.Seed)
	}
	if !(o.Tolerance > 0) || math.IsInf(o.Tolerance, 0) {
		return errs.Contract(op, "tolerance %g must be positive", o.Tolerance)
	}
	return nil
}

// Result holds the estimates of one voxel and the residual of every
// condition, predicted minus observed magnitude, in acquisition order.
type Result struct {
	Outputs   []float64
	Residuals []float64
}
