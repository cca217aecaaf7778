package dataset

import (
	"errors"
	"math"
)

// ErrRaggedMatrix is returned when a matrix length is not a multiple of dim.
var ErrRaggedMatrix = errors.New("matrix length is not a multiple of dimension")

// Scaler holds the fitted per-column mean and sample standard deviation.
// It is valid for the run that fitted it; runs are self-contained and
// never reuse a scaler across inputs.
type Scaler struct {
	Means []float64
	Stds  []float64
}

// Fit computes per-column sample mean and sample (n-1) standard deviation
// over a row-major matrix. Accumulation happens in float64 so column
// statistics stay stable for large catalogs.
func Fit(matrix []float32, dim int) (*Scaler, error) {
	if dim <= 0 || len(matrix)%dim != 0 {
		return nil, ErrRaggedMatrix
	}
	n := len(matrix) / dim

	s := &Scaler{
		Means: make([]float64, dim),
		Stds:  make([]float64, dim),
	}

	for i := 0; i < n; i++ {
		row := matrix[i*dim : (i+1)*dim]
		for c, v := range row {
			s.Means[c] += float64(v)
		}
	}
	for c := range s.Means {
		s.Means[c] /= float64(n)
	}

	if n < 2 {
		// A single row has no spread; every column is degenerate.
		return s, nil
	}

	for i := 0; i < n; i++ {
		row := matrix[i*dim : (i+1)*dim]
		for c, v := range row {
			d := float64(v) - s.Means[c]
			s.Stds[c] += d * d
		}
	}
	for c := range s.Stds {
		s.Stds[c] = math.Sqrt(s.Stds[c] / float64(n-1))
	}

	return s, nil
}

// Transform rewrites matrix in place as (x - mean) / std per column.
//
// A zero-variance column divides by zero; instead its values become 0
// after centering so no NaN/Inf ever reaches downstream stages.
func (s *Scaler) Transform(matrix []float32) error {
	dim := len(s.Means)
	if dim == 0 || len(matrix)%dim != 0 {
		return ErrRaggedMatrix
	}
	n := len(matrix) / dim

	for i := 0; i < n; i++ {
		row := matrix[i*dim : (i+1)*dim]
		for c := range row {
			if s.Stds[c] == 0 {
				row[c] = 0
				continue
			}
			row[c] = float32((float64(row[c]) - s.Means[c]) / s.Stds[c])
		}
	}
	return nil
}

// FitTransform fits a scaler on matrix and standardizes it in place.
func FitTransform(matrix []float32, dim int) (*Scaler, error) {
	s, err := Fit(matrix, dim)
	if err != nil {
		return nil, err
	}
	if err := s.Transform(matrix); err != nil {
		return nil, err
	}
	return s, nil
}
