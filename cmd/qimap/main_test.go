package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qimap/internal/table"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("qimap %s failed: %v", strings.Join(args, " "), err)
	}
}

// TestSignalThenDespot1 synthesizes an SPGR series and fits it back
func TestSignalThenDespot1(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "qimap.yaml")
	seqPath := filepath.Join(dir, "seq.yaml")
	paramsPath := filepath.Join(dir, "params.csv")
	prefix := dir + string(filepath.Separator)

	writeFile(t, seqPath, `sequences:
  - type: SPGR
    flip: [3, 4, 5, 6, 7, 9, 13, 18]
    tr: 0.005
    output: spgr.csv
`)
	writeFile(t, paramsPath, `PD,T1,T2,f0,B1
1,0.85,0.1,0,1
2,1.2,0.1,0,1
0.5,0.4,0.05,0,1
`)

	execute(t, "signal", "--config", cfgPath, "-s", seqPath, "-p", paramsPath, "-o", prefix, "--log-level", "error")
	execute(t, "despot1", "--config", cfgPath, "-s", seqPath, "-d", prefix+"spgr.csv", "-o", prefix, "--resids", "-T", "2", "--log-level", "error")

	maps, err := table.ReadFile(prefix+"D1_maps.csv", 2)
	if err != nil {
		t.Fatalf("Failed to read maps: %v", err)
	}
	want := [][2]float64{{1, 0.85}, {2, 1.2}, {0.5, 0.4}}
	if maps.Voxels() != len(want) {
		t.Fatalf("got %d voxels, want %d", maps.Voxels(), len(want))
	}
	for i, w := range want {
		got := maps.Voxel(i)
		if math.Abs(got[0]-w[0])/w[0] > 1e-6 || math.Abs(got[1]-w[1])/w[1] > 1e-6 {
			t.Errorf("voxel %d = %v, want %v", i, got, w)
		}
	}
	if _, err := os.Stat(prefix + "D1_residuals.csv"); err != nil {
		t.Errorf("residual table missing: %v", err)
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)
	execute(t, "version", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	if !strings.Contains(buf.String(), version) {
		t.Errorf("version output = %q", buf.String())
	}
}
