package sbs

import (
	"fmt"
	"sort"

	"vibration-diag/internal/dataset"
)

// Score is the relevance of one column.
type Score struct {
	Index      int     `json:"index"`
	Value      float64 `json:"value"`      // raw criterion value
	Normalized float64 `json:"normalized"` // Value divided by the best Value, in [0,1]
}

// Relevance scores every column of c with criterion and returns them most
// relevant first. Scores are normalised by the maximum; when the maximum is
// zero every normalised score is zero.
func Relevance(c dataset.Collection, criterion Criterion) ([]Score, error) {
	if criterion == nil {
		criterion = Variance{}
	}
	width, err := c.Width()
	if err != nil {
		return nil, fmt.Errorf("relevance: %w", err)
	}

	scores := make([]Score, width)
	var best float64
	for col := 0; col < width; col++ {
		v := criterion.Score(columnGroups(c, col))
		scores[col] = Score{Index: col, Value: v}
		if v > best {
			best = v
		}
	}
	if best > 0 {
		for i := range scores {
			scores[i].Normalized = scores[i].Value / best
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Value > scores[j].Value
	})
	return scores, nil
}
