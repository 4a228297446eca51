package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qimap/pkg/errs"
	"qimap/pkg/fitting"
	"qimap/pkg/sequence"
	"qimap/pkg/tissue"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	opts, err := cfg.FittingOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts != fitting.DefaultOptions() {
		t.Errorf("FittingOptions() = %+v, want defaults", opts)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Fitting.Algorithm != "l" || cfg.Fitting.MaxIterations != 4 {
		t.Errorf("got %+v, want defaults", cfg.Fitting)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"qimap.yaml", "qimap.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Processing.NumCores = 3
			cfg.Fitting.Algorithm = "n"
			cfg.Fitting.Method = fitting.MethodNelderMead
			cfg.Fitting.DefaultConstants = []float64{0.95}
			cfg.Synthesis.Model = "2"
			cfg.Synthesis.Noise = 0.01
			cfg.Sequences = []sequence.Spec{
				{Type: "SPGR", Flip: []float64{3, 18}, TR: 0.005},
				{Type: "SSFP", Flip: []float64{10, 50}, Phases: []float64{0, 180}, TR: 0.005},
			}

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			got, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if got.Processing.NumCores != 3 || got.Fitting.Algorithm != "n" || got.Fitting.Method != fitting.MethodNelderMead {
				t.Errorf("fitting section not preserved: %+v", got.Fitting)
			}
			if len(got.Fitting.DefaultConstants) != 1 || got.Fitting.DefaultConstants[0] != 0.95 {
				t.Errorf("default constants = %v", got.Fitting.DefaultConstants)
			}
			m, err := got.Model()
			if err != nil || m != tissue.MCD2 {
				t.Errorf("Model() = %v, %v", m, err)
			}
			seqs, err := got.BuildSequences()
			if err != nil {
				t.Fatal(err)
			}
			if len(seqs) != 2 || seqs[0].Size() != 2 || seqs[1].Size() != 4 {
				t.Errorf("sequences not preserved: %d", len(seqs))
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"algo.yaml":  "fitting:\n  algorithm: q\n",
		"cores.yaml": "processing:\n  numCores: 0\n",
		"seq.toml":   "[[sequences]]\ntype = \"SPGR\"\ntr = 0.005\n",
		"bad.yaml":   "processing: [\n",
	}
	for name, body := range tests {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: LoadConfig succeeded on invalid input", name)
		}
	}
}

func TestLoadSequences(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "seq.yaml")
	yamlBody := `sequences:
  - type: SPGR
    flip: [3, 4, 5, 6, 7, 9, 13, 18]
    tr: 0.005
  - type: AFI
    flip: [55]
    tr: 0.02
    tr2: 0.1
`
	if err := os.WriteFile(yamlPath, []byte(yamlBody), 0644); err != nil {
		t.Fatal(err)
	}
	specs, seqs, err := LoadSequences(yamlPath)
	if err != nil {
		t.Fatalf("LoadSequences(yaml) failed: %v", err)
	}
	if len(specs) != 2 || seqs[0].Size() != 8 || seqs[1].Name() != "AFI" {
		t.Errorf("unexpected sequences: %v", specs)
	}

	tomlPath := filepath.Join(dir, "seq.toml")
	tomlBody := `[[sequences]]
type = "MultiEcho"
te = [0.01, 0.02, 0.03]
tr = 2.0
`
	if err := os.WriteFile(tomlPath, []byte(tomlBody), 0644); err != nil {
		t.Fatal(err)
	}
	_, seqs, err = LoadSequences(tomlPath)
	if err != nil {
		t.Fatalf("LoadSequences(toml) failed: %v", err)
	}
	if seqs[0].Size() != 3 {
		t.Errorf("echo count = %d, want 3", seqs[0].Size())
	}

	badPath := filepath.Join(dir, "bad.yaml")
	os.WriteFile(badPath, []byte("sequences:\n  - type: WHAT\n"), 0644)
	if _, _, err := LoadSequences(badPath); !errors.Is(err, errs.ErrContract) {
		t.Errorf("unknown type: got %v, want contract violation", err)
	}
}
