package ml

import (
	"fmt"
	"math"
	"sort"

	"vibration-diag/internal/common"
)

// FeatureImportance is the accuracy drop observed when one column is permuted.
type FeatureImportance struct {
	Index            int     `json:"index"`
	Name             string  `json:"name,omitempty"`
	PermutationScore float64 `json:"permutation_score"` // baseline minus permuted accuracy
	ImportanceScore  float64 `json:"importance_score"`  // PermutationScore clamped at zero
}

// PermutationImportance measures, for each column, how much accuracy falls
// when that column's values are shifted by one row (the last row takes the
// first row's value). names is optional and labels the columns.
func PermutationImportance(c Classifier, rows, labels [][]float64, names []string) ([]FeatureImportance, error) {
	baseline, err := evaluate(c, rows, labels)
	if err != nil {
		return nil, fmt.Errorf("permutation importance: %w", err)
	}

	width := len(rows[0])
	if names != nil && len(names) != width {
		return nil, fmt.Errorf("permutation importance: %w: %d names for %d columns", common.ErrShapeMismatch, len(names), width)
	}

	permuted := make([][]float64, len(rows))
	result := make([]FeatureImportance, width)
	for col := 0; col < width; col++ {
		for i := range rows {
			permuted[i] = append(permuted[i][:0], rows[i]...)
		}
		for i := range permuted {
			j := i
			if len(permuted) > 1 {
				j = (i + 1) % len(permuted)
			}
			permuted[i][col] = rows[j][col]
		}

		eval, err := evaluate(c, permuted, labels)
		if err != nil {
			return nil, fmt.Errorf("permutation importance: column %d: %w", col, err)
		}

		drop := baseline.Accuracy - eval.Accuracy
		result[col] = FeatureImportance{
			Index:            col,
			PermutationScore: drop,
			ImportanceScore:  math.Max(0, drop),
		}
		if names != nil {
			result[col].Name = names[col]
		}
	}
	return result, nil
}

// TopFeatures returns importances ordered most important first.
func TopFeatures(importances []FeatureImportance, n int) []FeatureImportance {
	sorted := append([]FeatureImportance(nil), importances...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImportanceScore > sorted[j].ImportanceScore
	})
	if n < 0 || n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
