package fitting

import (
	"errors"
	"math"
	"testing"

	"qimap/pkg/errs"
	"qimap/pkg/sequence"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

func degrees(d ...float64) []float64 {
	out := make([]float64, len(d))
	for i, v := range d {
		out[i] = v * math.Pi / 180
	}
	return out
}

// vfa is the variable flip angle protocol used throughout: 3-18 degrees at
// TR 5 ms.
func vfa(t *testing.T) *sequence.SPGR {
	t.Helper()
	seq, err := sequence.NewSPGR(degrees(3, 4, 5, 6, 7, 9, 13, 18), 0.005)
	if err != nil {
		t.Fatalf("NewSPGR failed: %v", err)
	}
	return seq
}

func simulate(t *testing.T, seq signal.Sequence, pd, T1, B1 float64) []float64 {
	t.Helper()
	p := tissue.SCD.Defaults()
	p[0], p[1], p[4] = pd, T1, B1
	s, err := signal.Evaluate(seq, tissue.SCD, p)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	out := make([]float64, len(s))
	signal.Magnitude(out, s)
	return out
}

func estimator(t *testing.T, s Strategy, mutate ...func(*Options)) *T1Estimator {
	t.Helper()
	opts := DefaultOptions()
	opts.Strategy = s
	for _, m := range mutate {
		m(&opts)
	}
	e, err := NewT1Estimator(opts)
	if err != nil {
		t.Fatalf("NewT1Estimator failed: %v", err)
	}
	return e
}

func relErr(got, want float64) float64 { return math.Abs(got-want) / math.Abs(want) }

func sumSquares(r []float64) float64 {
	var s float64
	for _, v := range r {
		s += v * v
	}
	return s
}

func TestDESPOT1NoiselessRecovery(t *testing.T) {
	seq := vfa(t)
	data := simulate(t, seq, 1, 0.85, 1)

	for _, s := range []Strategy{LLS, WLLS, NLLS} {
		t.Run(s.String(), func(t *testing.T) {
			res, err := estimator(t, s).Estimate(seq, data, nil)
			if err != nil {
				t.Fatalf("Estimate failed: %v", err)
			}
			if e := relErr(res.Outputs[0], 1); e > 1e-6 {
				t.Errorf("PD = %g, relative error %g", res.Outputs[0], e)
			}
			if e := relErr(res.Outputs[1], 0.85); e > 1e-6 {
				t.Errorf("T1 = %g, relative error %g", res.Outputs[1], e)
			}
			for i, r := range res.Residuals {
				if math.Abs(r) > 1e-9 {
					t.Errorf("residual %d = %g, want ~0", i, r)
				}
			}
		})
	}
}

func TestDESPOT1WithB1(t *testing.T) {
	seq := vfa(t)
	data := simulate(t, seq, 1, 0.85, 0.9)

	res, err := estimator(t, LLS).Estimate(seq, data, []float64{0.9})
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if e := relErr(res.Outputs[1], 0.85); e > 0.02 {
		t.Errorf("T1 with B1 = %g, relative error %g", res.Outputs[1], e)
	}

	ignored, err := estimator(t, LLS).Estimate(seq, data, []float64{1})
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if e := relErr(ignored.Outputs[1], 0.85); e < 0.1 {
		t.Errorf("T1 ignoring B1 = %g, expected a bias above 10%%", ignored.Outputs[1])
	}
}

func TestWLLSZeroIterationsIsLLS(t *testing.T) {
	seq := vfa(t)
	data := simulate(t, seq, 1, 0.85, 1)
	for i := range data {
		data[i] *= 1 + 0.02*math.Pow(-1, float64(i))
	}

	lls, err := estimator(t, LLS).Estimate(seq, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	wlls, err := estimator(t, WLLS, func(o *Options) { o.MaxIterations = 0 }).Estimate(seq, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range lls.Outputs {
		if lls.Outputs[i] != wlls.Outputs[i] {
			t.Errorf("output %d: WLLS(0) = %v, LLS = %v", i, wlls.Outputs[i], lls.Outputs[i])
		}
	}
}

// noisy perturbs the noiseless series by alternating +-2%.
func noisy(t *testing.T, seq *sequence.SPGR) []float64 {
	t.Helper()
	data := simulate(t, seq, 1, 0.85, 1)
	for i := range data {
		data[i] *= 1 + 0.02*math.Pow(-1, float64(i))
	}
	return data
}

func TestResidualInvariant(t *testing.T) {
	seq := vfa(t)
	data := noisy(t, seq)

	for _, s := range []Strategy{LLS, WLLS, NLLS} {
		t.Run(s.String(), func(t *testing.T) {
			res, err := estimator(t, s).Estimate(seq, data, nil)
			if err != nil {
				t.Fatalf("Estimate failed: %v", err)
			}
			pred := simulate(t, seq, res.Outputs[0], res.Outputs[1], 1)
			for i := range data {
				want := pred[i] - data[i]
				if math.Abs(res.Residuals[i]-want) > 1e-12 {
					t.Errorf("residual %d = %g, want %g", i, res.Residuals[i], want)
				}
			}
			if e := relErr(res.Outputs[1], 0.85); e > 0.05 {
				t.Errorf("T1 = %g, too far from 0.85", res.Outputs[1])
			}
		})
	}
}

func TestNLLSDoesNotIncreaseCost(t *testing.T) {
	seq := vfa(t)
	data := noisy(t, seq)

	lls, err := estimator(t, LLS).Estimate(seq, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, method := range []string{MethodLM, MethodNelderMead, MethodBFGS} {
		t.Run(method, func(t *testing.T) {
			res, err := estimator(t, NLLS, func(o *Options) { o.Method = method }).Estimate(seq, data, nil)
			if err != nil {
				t.Fatalf("Estimate failed: %v", err)
			}
			if got, seed := sumSquares(res.Residuals), sumSquares(lls.Residuals); got > seed*(1+1e-12) {
				t.Errorf("NLLS cost %g exceeds its LLS seed cost %g", got, seed)
			}
		})
	}
}

func TestNLLSMayflySeed(t *testing.T) {
	if testing.Short() {
		t.Skip("global search")
	}
	seq := vfa(t)
	data := simulate(t, seq, 1, 0.85, 1)

	e := estimator(t, NLLS, func(o *Options) {
		o.Seed = SeedMayfly
		o.MaxIterations = 20
	})
	res, err := e.Estimate(seq, data, nil)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if e := relErr(res.Outputs[1], 0.85); e > 0.01 {
		t.Errorf("T1 = %g, relative error %g", res.Outputs[1], e)
	}
}

func TestZeroFlipIsSkipped(t *testing.T) {
	seq, err := sequence.NewSPGR(degrees(0, 3, 4, 5, 6, 7, 9, 13, 18), 0.005)
	if err != nil {
		t.Fatal(err)
	}
	data := simulate(t, seq, 1, 0.85, 1)

	res, err := estimator(t, LLS).Estimate(seq, data, nil)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if e := relErr(res.Outputs[1], 0.85); e > 1e-6 {
		t.Errorf("T1 = %g", res.Outputs[1])
	}
	if len(res.Residuals) != 9 {
		t.Fatalf("got %d residuals, want 9", len(res.Residuals))
	}

	seq, _ = sequence.NewSPGR(degrees(0, 0, 10), 0.005)
	_, err = estimator(t, LLS).Estimate(seq, []float64{0, 0, 0.05}, nil)
	if !errors.Is(err, errs.ErrContract) {
		t.Errorf("one usable flip: got %v, want contract violation", err)
	}
}

func TestDESPOT1Contract(t *testing.T) {
	seq := vfa(t)
	e := estimator(t, LLS)
	good := simulate(t, seq, 1, 0.85, 1)

	tests := []struct {
		name   string
		data   []float64
		consts []float64
	}{
		{"short data", good[:7], nil},
		{"two constants", good, []float64{1, 1}},
		{"zero B1", good, []float64{0}},
		{"NaN data", append(append([]float64(nil), good[:7]...), math.NaN()), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Estimate(seq, tt.data, tt.consts); !errors.Is(err, errs.ErrContract) {
				t.Errorf("got %v, want contract violation", err)
			}
		})
	}
}

func TestDESPOT1Diverged(t *testing.T) {
	seq := vfa(t)
	// Chosen so that the regression slope, E1, is exactly 2.
	data := make([]float64, seq.Size())
	for i, a := range seq.Flip() {
		data[i] = math.Sin(a) / (2*math.Cos(a) - 1)
	}
	if _, err := estimator(t, LLS).Estimate(seq, data, nil); !errors.Is(err, errs.ErrDiverged) {
		t.Errorf("got %v, want divergence", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"l": LLS, "W": WLLS, "n": NLLS, "nlls": NLLS} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("x"); !errors.Is(err, errs.ErrContract) {
		t.Errorf("ParseStrategy(x) error = %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	bad := []func(*Options){
		func(o *Options) { o.MaxIterations = -1 },
		func(o *Options) { o.Method = "simplex" },
		func(o *Options) { o.Seed = "random" },
		func(o *Options) { o.Tolerance = 0 },
		func(o *Options) { o.Seed = SeedMayfly; o.SeedPopulation = 5 },
	}
	for i, m := range bad {
		o := DefaultOptions()
		m(&o)
		if _, err := NewT1Estimator(o); !errors.Is(err, errs.ErrContract) {
			t.Errorf("case %d: got %v, want contract violation", i, err)
		}
	}
}
