package dataset

import (
	"fmt"
	"math"

	"vibration-diag/internal/common"

	"gonum.org/v1/gonum/stat"
)

// flatTolerance treats rounding noise on a constant column as zero spread.
const flatTolerance = 1e-12

// Standardizer rescales columns to zero mean and unit variance using
// statistics learned from a reference set of rows. Columns with zero
// variance are only centred.
type Standardizer struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitStandardizer learns per-column mean and population standard deviation.
func FitStandardizer(rows [][]float64) (*Standardizer, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("standardizer: %w: no rows", common.ErrEmptyDataset)
	}
	width := len(rows[0])
	col := make([]float64, len(rows))
	s := &Standardizer{Means: make([]float64, width), Stds: make([]float64, width)}
	for j := 0; j < width; j++ {
		for i, row := range rows {
			if len(row) != width {
				return nil, fmt.Errorf("standardizer: %w: row %d has %d columns, want %d", common.ErrShapeMismatch, i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std <= flatTolerance*math.Max(1, math.Abs(mean)) {
			std = 0
		}
		s.Means[j] = mean
		s.Stds[j] = std
	}
	return s, nil
}

// Transform returns standardized copies of rows.
func (s *Standardizer) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Means) {
			return nil, fmt.Errorf("standardizer: %w: row %d has %d columns, want %d", common.ErrShapeMismatch, i, len(row), len(s.Means))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = v - s.Means[j]
			if s.Stds[j] > 0 {
				scaled[j] /= s.Stds[j]
			}
		}
		out[i] = scaled
	}
	return out, nil
}
