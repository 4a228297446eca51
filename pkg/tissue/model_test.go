package tissue

import (
	"errors"
	"testing"

	"qimap/pkg/errs"
)

func TestModelMetadata(t *testing.T) {
	tests := []struct {
		model      Model
		components int
		params     int
		first      []string
	}{
		{SCD, 1, 5, []string{"PD", "T1", "T2"}},
		{MCD2, 2, 9, []string{"PD", "T1_a", "T2_a"}},
		{MCD3, 3, 12, []string{"PD", "T1_a", "T2_a"}},
	}

	for _, tt := range tests {
		t.Run(tt.model.Name(), func(t *testing.T) {
			if got := tt.model.Components(); got != tt.components {
				t.Errorf("Components() = %d, want %d", got, tt.components)
			}
			if got := tt.model.NumParameters(); got != tt.params {
				t.Errorf("NumParameters() = %d, want %d", got, tt.params)
			}
			names := tt.model.Names()
			if len(names) != tt.params {
				t.Fatalf("len(Names()) = %d, want %d", len(names), tt.params)
			}
			for i, n := range tt.first {
				if names[i] != n {
					t.Errorf("Names()[%d] = %s, want %s", i, names[i], n)
				}
			}
			if got := len(tt.model.Defaults()); got != tt.params {
				t.Errorf("len(Defaults()) = %d, want %d", got, tt.params)
			}
			if b1 := tt.model.Index("B1"); b1 != tt.params-1 {
				t.Errorf("Index(B1) = %d, want %d", b1, tt.params-1)
			}
		})
	}
}

func TestDefaultsAreCopies(t *testing.T) {
	d := SCD.Defaults()
	d[1] = -5
	if SCD.Defaults()[1] == -5 {
		t.Error("Defaults() returned shared storage")
	}
	n := MCD2.Names()
	n[0] = "x"
	if MCD2.Names()[0] != "PD" {
		t.Error("Names() returned shared storage")
	}
}

func TestCheck(t *testing.T) {
	if err := SCD.Check(make([]float64, 5)); err != nil {
		t.Errorf("Check(5) = %v, want nil", err)
	}
	if err := SCD.Check(make([]float64, 3)); !errors.Is(err, errs.ErrContract) {
		t.Errorf("Check(3) = %v, want contract violation", err)
	}
	if err := Model(9).Check(nil); !errors.Is(err, errs.ErrContract) {
		t.Errorf("Check on unknown model = %v, want contract violation", err)
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Model{"1": SCD, "scd": SCD, "2c": MCD2, " 3 ": MCD3, "MCD3": MCD3} {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := Parse("4"); !errors.Is(err, errs.ErrContract) {
		t.Errorf("Parse(4) = %v, want contract violation", err)
	}
}
