package table

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"qimap/internal/models"
)

func TestReadSeries(t *testing.T) {
	in := `# flip series
a,b,c
1, 2, 3
4,5,6e-1
`
	s, err := ReadSeries(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("ReadSeries failed: %v", err)
	}
	if s.Width != 3 || s.Voxels() != 2 {
		t.Fatalf("got %d voxels of width %d", s.Voxels(), s.Width)
	}
	if s.Voxel(1)[2] != 0.6 {
		t.Errorf("Voxel(1) = %v", s.Voxel(1))
	}
}

func TestReadSeriesErrors(t *testing.T) {
	tests := map[string]string{
		"ragged":     "1,2\n3\n",
		"width":      "1,2,3\n",
		"non-number": "1,2\nx,y\n",
	}
	for name, in := range tests {
		if _, err := ReadSeries(strings.NewReader(in), 2); err == nil {
			t.Errorf("%s: ReadSeries succeeded", name)
		}
	}
}

func TestReadMask(t *testing.T) {
	mask, err := ReadMask(strings.NewReader("mask\n1\n0\n2\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask = %v, want %v", mask, want)
			break
		}
	}
}

func TestWriteComplex(t *testing.T) {
	s := models.NewComplexSeries(1, 2)
	s.Data[0], s.Data[1] = complex(3, 4), complex(0, -1)

	var buf bytes.Buffer
	if err := WriteComplex(&buf, nil, s, false); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "5,1\n" {
		t.Errorf("magnitudes = %q", got)
	}
	buf.Reset()
	if err := WriteComplex(&buf, []string{"re0", "im0", "re1", "im1"}, s, true); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "re0,im0,re1,im1\n3,4,0,-1\n" {
		t.Errorf("complex = %q", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps.csv")
	s := models.NewSeries(2, 2)
	copy(s.Data, []float64{1, 0.85, 0.9, 1.2})
	if err := WriteFile(path, []string{"PD", "T1"}, s); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range s.Data {
		if got.Data[i] != s.Data[i] {
			t.Errorf("value %d = %g, want %g", i, got.Data[i], s.Data[i])
		}
	}
}
