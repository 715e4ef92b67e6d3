package predict

import (
	"fmt"
)

type StandardScaler struct {
	FeatureNames []string  `json:"feature_names_in" validate:"omitempty,dive,required"`
	Mean         []float64 `json:"mean" validate:"required,min=1"`
	Scale        []float64 `json:"scale" validate:"required,min=1"`
}

func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

func (s *StandardScaler) validate() error {
	if len(s.Scale) != len(s.Mean) {
		return fmt.Errorf("scale has %d entries, mean has %d", len(s.Scale), len(s.Mean))
	}
	if len(s.FeatureNames) > 0 && len(s.FeatureNames) != len(s.Mean) {
		return fmt.Errorf("feature_names_in has %d entries, mean has %d", len(s.FeatureNames), len(s.Mean))
	}
	return nil
}

// Computes (x - mean) / scale per column. A zero scale is treated
// as 1, matching how the scaler handles constant columns.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))

	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrFeatureShapeMismatch, i, len(row), len(s.Mean))
		}

		scaled := make([]float64, len(row))
		for j, v := range row {
			scale := s.Scale[j]
			if scale == 0 {
				scale = 1
			}
			scaled[j] = (v - s.Mean[j]) / scale
		}
		out[i] = scaled
	}

	return out, nil
}
