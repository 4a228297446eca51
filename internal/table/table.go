// Package table reads and writes voxel series as CSV, one voxel per row.
//
// A leading row that does not parse as numbers is taken as a header and
// skipped. Lines starting with # are comments.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/cmplx"
	"os"
	"strconv"
	"strings"

	"qimap/internal/models"
)

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr
}

func parseRow(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for i, f := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// ReadSeries parses rows of width values each. A width below one takes the
// width from the first data row.
func ReadSeries(r io.Reader, width int) (*models.Series, error) {
	cr := newReader(r)
	s := &models.Series{Width: width}
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading table: %w", err)
		}
		row, perr := parseRow(rec)
		if perr != nil {
			if first {
				first = false
				continue
			}
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, perr)
		}
		first = false
		if s.Width < 1 {
			s.Width = len(row)
		}
		if len(row) != s.Width {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: got %d values, want %d", line, len(row), s.Width)
		}
		s.Data = append(s.Data, row...)
	}
	return s, nil
}

// ReadMask reads one value per row; non-zero values select the voxel.
func ReadMask(r io.Reader) ([]bool, error) {
	s, err := ReadSeries(r, 1)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(s.Data))
	for i, v := range s.Data {
		mask[i] = v != 0
	}
	return mask, nil
}

// WriteSeries writes an optional header followed by one row per voxel.
func WriteSeries(w io.Writer, header []string, s *models.Series) error {
	cw := csv.NewWriter(w)
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	rec := make([]string, s.Width)
	for i := 0; i < s.Voxels(); i++ {
		for j, v := range s.Voxel(i) {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteComplex writes magnitudes, or real and imaginary pairs when
// complexValues is set.
func WriteComplex(w io.Writer, header []string, s *models.ComplexSeries, complexValues bool) error {
	width := s.Width
	if complexValues {
		width *= 2
	}
	out := models.NewSeries(s.Voxels(), width)
	for i := 0; i < s.Voxels(); i++ {
		dst := out.Voxel(i)
		for j, v := range s.Voxel(i) {
			if complexValues {
				dst[2*j], dst[2*j+1] = real(v), imag(v)
			} else {
				dst[j] = cmplx.Abs(v)
			}
		}
	}
	return WriteSeries(w, header, out)
}

// ReadFile opens path and reads a series from it.
func ReadFile(path string, width int) (*models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSeries(f, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadMaskFile opens path and reads a mask from it.
func ReadMaskFile(path string) ([]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadMask(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteFile creates path and writes a series to it.
func WriteFile(path string, header []string, s *models.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSeries(f, header, s); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
