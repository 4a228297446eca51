package models

import "fmt"

// Series is a voxel-major block of real values: Width consecutive values
// per voxel, one voxel after another. It carries measurements, constants,
// estimates or residuals depending on where it is used.
type Series struct {
	// Data holds Voxels()*Width values
	Data []float64

	// Width is the number of values per voxel
	Width int
}

// NewSeries allocates a zeroed series.
func NewSeries(voxels, width int) *Series {
	return &Series{Data: make([]float64, voxels*width), Width: width}
}

// Voxels returns the number of voxels in the series.
func (s *Series) Voxels() int {
	if s.Width == 0 {
		return 0
	}
	return len(s.Data) / s.Width
}

// Voxel returns the values of voxel i. The slice aliases Data.
func (s *Series) Voxel(i int) []float64 {
	return s.Data[i*s.Width : (i+1)*s.Width : (i+1)*s.Width]
}

// Check verifies that Data is a whole number of voxels of the expected width.
func (s *Series) Check(width int) error {
	if s.Width != width {
		return fmt.Errorf("series has %d values per voxel, want %d", s.Width, width)
	}
	if width > 0 && len(s.Data)%width != 0 {
		return fmt.Errorf("series length %d is not a multiple of %d", len(s.Data), width)
	}
	return nil
}

// ComplexSeries is the complex-valued counterpart of Series, used for
// synthesized signals before the magnitude is taken.
type ComplexSeries struct {
	Data  []complex128
	Width int
}

func NewComplexSeries(voxels, width int) *ComplexSeries {
	return &ComplexSeries{Data: make([]complex128, voxels*width), Width: width}
}

func (s *ComplexSeries) Voxels() int {
	if s.Width == 0 {
		return 0
	}
	return len(s.Data) / s.Width
}

func (s *ComplexSeries) Voxel(i int) []complex128 {
	return s.Data[i*s.Width : (i+1)*s.Width : (i+1)*s.Width]
}

// Region is the half-open voxel range [Start, End) handled by one worker.
type Region struct {
	Start, End int
}

// Len returns the number of voxels in the region.
func (r Region) Len() int { return r.End - r.Start }

// Split divides n voxels into at most parts contiguous regions of nearly
// equal size. Empty regions are not returned.
func Split(n, parts int) []Region {
	if parts < 1 {
		parts = 1
	}
	per := (n + parts - 1) / parts
	var out []Region
	for start := 0; start < n; start += per {
		end := start + per
		if end > n {
			end = n
		}
		out = append(out, Region{Start: start, End: end})
	}
	return out
}

// VoxelStatus is the outcome of fitting one voxel.
type VoxelStatus int

const (
	// Converged voxels hold a physical estimate.
	Converged VoxelStatus = iota
	// Diverged voxels ended outside the physical range.
	Diverged
	// Failed voxels could not be fitted at all (bad input, domain error).
	Failed
	// Masked voxels were excluded by the mask and never fitted.
	Masked
)

func (s VoxelStatus) String() string {
	switch s {
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	case Failed:
		return "failed"
	case Masked:
		return "masked"
	default:
		return fmt.Sprintf("VoxelStatus(%d)", int(s))
	}
}
