package mapping

import (
	"errors"
	"math"
	"testing"

	"qimap/internal/models"
	"qimap/pkg/errs"
	"qimap/pkg/fitting"
	"qimap/pkg/sequence"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// vfaAlgorithm binds an LLS DESPOT1 estimator to the 3-18 degree protocol
func vfaAlgorithm(t *testing.T) (*sequence.SPGR, fitting.Algorithm) {
	t.Helper()
	seq, err := sequence.Spec{Type: "SPGR", Flip: []float64{3, 4, 5, 6, 7, 9, 13, 18}, TR: 0.005}.Build()
	if err != nil {
		t.Fatalf("Failed to build sequence: %v", err)
	}
	e, err := fitting.NewT1Estimator(fitting.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create estimator: %v", err)
	}
	spgr := seq.(*sequence.SPGR)
	alg, err := e.Bind(spgr)
	if err != nil {
		t.Fatalf("Failed to bind estimator: %v", err)
	}
	return spgr, alg
}

// createTestData simulates a row of voxels with T1 rising from 0.5 s
func createTestData(t *testing.T, seq *sequence.SPGR, voxels int) (*models.Series, *models.Series) {
	t.Helper()
	params := models.NewSeries(voxels, tissue.SCD.NumParameters())
	for i := 0; i < voxels; i++ {
		p := params.Voxel(i)
		copy(p, tissue.SCD.Defaults())
		p[0] = 100
		p[1] = 0.5 + 0.1*float64(i)
	}

	signals, err := NewMapper(&Params{NumCores: 3}).Synthesize(seq, tissue.SCD, params, 0, 1)
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}
	data := models.NewSeries(voxels, seq.Size())
	for i := 0; i < voxels; i++ {
		signal.Magnitude(data.Voxel(i), signals.Voxel(i))
	}
	return params, data
}

func TestProcessRecoversMaps(t *testing.T) {
	seq, alg := vfaAlgorithm(t)
	params, data := createTestData(t, seq, 10)

	for _, cores := range []int{1, 4, 16} {
		out, err := NewMapper(&Params{NumCores: cores}).Process(alg, Input{Data: data})
		if err != nil {
			t.Fatalf("Process with %d cores failed: %v", cores, err)
		}
		if out.Summary.Converged != 10 {
			t.Errorf("%d cores: %d voxels converged, want 10", cores, out.Summary.Converged)
		}
		for i := 0; i < 10; i++ {
			want := params.Voxel(i)[1]
			got := out.Estimates.Voxel(i)[1]
			if math.Abs(got-want)/want > 1e-6 {
				t.Errorf("%d cores: voxel %d T1 = %g, want %g", cores, i, got, want)
			}
		}
		if out.Summary.ResidualMean > 1e-9 {
			t.Errorf("residual mean = %g, want ~0", out.Summary.ResidualMean)
		}
	}
}

func TestProcessStatuses(t *testing.T) {
	seq, alg := vfaAlgorithm(t)
	_, data := createTestData(t, seq, 4)

	// Voxel 1 is masked, voxel 2 gets an invalid B1, voxel 3 is pure noise
	// shaped so that the regression slope exceeds one.
	mask := []bool{true, false, true, true}
	consts := models.NewSeries(4, 1)
	for i := range consts.Data {
		consts.Data[i] = 1
	}
	consts.Data[2] = -1
	for j, a := range seq.Flip() {
		data.Voxel(3)[j] = math.Sin(a) / (2*math.Cos(a) - 1)
	}

	out, err := NewMapper(&Params{NumCores: 2}).Process(alg, Input{Data: data, Constants: consts, Mask: mask})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := []models.VoxelStatus{models.Converged, models.Masked, models.Failed, models.Diverged}
	for i, s := range want {
		if out.Status[i] != s {
			t.Errorf("voxel %d status = %v, want %v", i, out.Status[i], s)
		}
	}
	for _, i := range []int{1, 2, 3} {
		for _, v := range out.Estimates.Voxel(i) {
			if v != 0 {
				t.Errorf("voxel %d estimates not zero-filled: %v", i, out.Estimates.Voxel(i))
			}
		}
	}
	s := out.Summary
	if s.Voxels != 4 || s.Converged != 1 || s.Masked != 1 || s.Failed != 1 || s.Diverged != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestProcessContract(t *testing.T) {
	seq, alg := vfaAlgorithm(t)
	_, data := createTestData(t, seq, 3)
	m := NewMapper(nil)

	tests := []struct {
		name string
		in   Input
	}{
		{"no data", Input{}},
		{"wrong width", Input{Data: models.NewSeries(3, 5)}},
		{"short mask", Input{Data: data, Mask: []bool{true}}},
		{"constant voxels", Input{Data: data, Constants: models.NewSeries(2, 1)}},
		{"constant width", Input{Data: data, Constants: models.NewSeries(3, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Process(alg, tt.in); !errors.Is(err, errs.ErrContract) {
				t.Errorf("got %v, want contract violation", err)
			}
		})
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	seq, _ := vfaAlgorithm(t)
	params := models.NewSeries(7, tissue.SCD.NumParameters())
	for i := 0; i < 7; i++ {
		copy(params.Voxel(i), tissue.SCD.Defaults())
	}

	a, err := NewMapper(&Params{NumCores: 1}).Synthesize(seq, tissue.SCD, params, 0.01, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMapper(&Params{NumCores: 5}).Synthesize(seq, tissue.SCD, params, 0.01, 42)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("value %d differs between core counts: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
	// Identical voxels must still receive different noise.
	if a.Voxel(0)[0] == a.Voxel(1)[0] {
		t.Error("voxels 0 and 1 drew the same noise")
	}

	bad := models.NewSeries(1, tissue.SCD.NumParameters())
	copy(bad.Data, tissue.SCD.Defaults())
	bad.Data[1] = -1
	if _, err := NewMapper(nil).Synthesize(seq, tissue.SCD, bad, 0, 1); !errors.Is(err, errs.ErrDomain) {
		t.Errorf("negative T1: got %v, want domain error", err)
	}
}
