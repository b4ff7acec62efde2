package dataset

import (
	"fmt"
	"math"

	"vibration-diag/internal/common"
)

// splitEpsilon absorbs representation error in rowCount*ratio, e.g. 10*0.7.
const splitEpsilon = 1e-9

// Split is a positional train/test partition with one-hot labels aligned
// row for row. Rows keep per-class contiguous blocks in class order.
type Split struct {
	TrainRows   [][]float64
	TrainLabels [][]float64
	TestRows    [][]float64
	TestLabels  [][]float64
}

// SplitCollection sends the first floor(rows*ratio) rows of every class to
// training and the remainder to testing. Rows are not shuffled.
func SplitCollection(c Collection, ratio float64) (Split, error) {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return Split{}, fmt.Errorf("split: %w: ratio %v outside [0,1]", common.ErrInvalidArgument, ratio)
	}
	if _, err := c.Width(); err != nil {
		return Split{}, fmt.Errorf("split: %w", err)
	}

	var s Split
	for ci, m := range c {
		label, err := OneHot(ci, len(c))
		if err != nil {
			return Split{}, err
		}

		cut := TrainCount(len(m.Rows), ratio)
		s.TrainRows = append(s.TrainRows, m.Rows[:cut]...)
		s.TrainLabels = append(s.TrainLabels, Broadcast(label, cut)...)
		s.TestRows = append(s.TestRows, m.Rows[cut:]...)
		s.TestLabels = append(s.TestLabels, Broadcast(label, len(m.Rows)-cut)...)
	}
	return s, nil
}

// TrainCount returns floor(rows*ratio).
func TrainCount(rows int, ratio float64) int {
	cut := int(math.Floor(float64(rows)*ratio + splitEpsilon))
	if cut > rows {
		cut = rows
	}
	return cut
}
