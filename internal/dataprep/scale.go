package dataprep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scales below this are treated as zero variance.
const degenerateScale = 10 * 2.220446049250313e-16

// DegenerateFeatureError reports columns with zero variance in the training
// matrix. It is only returned when the scaler rejects degenerate features.
type DegenerateFeatureError struct {
	Columns []int
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("zero variance in feature columns %v", e.Columns)
}

// Scaler standardizes each column to zero mean and unit variance using the
// population standard deviation of the training data.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`

	// Degenerate lists columns whose scale was clamped to 1.
	Degenerate []int `json:"degenerate,omitempty"`

	// RejectDegenerate makes Fit fail instead of clamping.
	RejectDegenerate bool `json:"-"`
}

// NewScaler returns an unfitted scaler. With reject set, zero-variance
// columns fail Fit with a DegenerateFeatureError; otherwise their scale is
// clamped to 1 so the column is only centred.
func NewScaler(reject bool) *Scaler {
	return &Scaler{RejectDegenerate: reject}
}

// Fitted reports whether Fit has completed.
func (s *Scaler) Fitted() bool {
	return len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}

// Fit learns per-column mean and scale.
func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler: empty matrix")
	}
	cols := len(X[0])
	if cols == 0 {
		return fmt.Errorf("scaler: matrix has no columns")
	}

	mean := make([]float64, cols)
	scale := make([]float64, cols)
	var degenerate []int

	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return fmt.Errorf("scaler: row %d has %d columns, expected %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		m, variance := stat.PopMeanVariance(col, nil)
		mean[j] = m
		scale[j] = math.Sqrt(variance)
		if scale[j] < degenerateScale {
			degenerate = append(degenerate, j)
			scale[j] = 1
		}
	}

	if len(degenerate) > 0 && s.RejectDegenerate {
		return &DegenerateFeatureError{Columns: degenerate}
	}

	s.Mean = mean
	s.Scale = scale
	s.Degenerate = degenerate
	return nil
}

// Transform applies (x - mean) / scale column by column. X must already be in
// the column order the scaler was fit with.
func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow scales a single row.
func (s *Scaler) TransformRow(row []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, fmt.Errorf("scaler: not fitted")
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: got %d columns, expected %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// FitTransform fits on X and returns X scaled.
func (s *Scaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
