package sbs

import (
	"fmt"

	"vibration-diag/internal/common"
	"vibration-diag/internal/indicator"
)

// fisherEpsilon keeps the separability ratio finite for columns without
// within-class dispersion.
const fisherEpsilon = 1e-9

// Criterion scores the relevance of one column. groups holds the column's
// values split by class, in collection order; a group may be empty.
// Higher scores mean more relevant.
type Criterion interface {
	Name() string
	Score(groups [][]float64) float64
}

// Variance judges a column by the population variance of its values pooled
// across every class. A column with no values scores 0.
type Variance struct{}

func (Variance) Name() string { return common.CriterionVariance }

func (Variance) Score(groups [][]float64) float64 {
	var pooled []float64
	for _, g := range groups {
		pooled = append(pooled, g...)
	}
	if len(pooled) == 0 {
		return 0
	}
	_, variance := indicator.Moments(pooled)
	return variance
}

// Fisher judges a column by class separability: between-class sum of squares
// over within-class sum of squares.
type Fisher struct{}

func (Fisher) Name() string { return common.CriterionFisher }

func (Fisher) Score(groups [][]float64) float64 {
	var (
		total float64
		count int
	)
	means := make([]float64, len(groups))
	for i, g := range groups {
		var sum float64
		for _, v := range g {
			sum += v
		}
		if len(g) > 0 {
			means[i] = sum / float64(len(g))
		}
		total += sum
		count += len(g)
	}
	if count == 0 {
		return 0
	}
	overall := total / float64(count)

	var ssb, ssw float64
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		d := means[i] - overall
		ssb += float64(len(g)) * d * d
		for _, v := range g {
			e := v - means[i]
			ssw += e * e
		}
	}
	return ssb / (ssw + fisherEpsilon)
}

// ParseCriterion maps a configuration name to a Criterion.
func ParseCriterion(name string) (Criterion, error) {
	switch name {
	case common.CriterionVariance, "":
		return Variance{}, nil
	case common.CriterionFisher:
		return Fisher{}, nil
	default:
		return nil, fmt.Errorf("criterion %q: %w", name, common.ErrInvalidArgument)
	}
}
