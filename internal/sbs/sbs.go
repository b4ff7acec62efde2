// Package sbs implements Sequential Backward Selection over per-class
// indicator matrices. Columns are removed one at a time, least relevant
// first, until the requested width remains. Surviving columns keep their
// original order and values.
package sbs

import (
	"fmt"
	"sort"

	"vibration-diag/internal/common"
	"vibration-diag/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Removal records one backward-selection step.
type Removal struct {
	Index int     `json:"index"` // original column index
	Score float64 `json:"score"` // criterion value when removed
}

// Result is the outcome of Select.
type Result struct {
	Collection dataset.Collection `json:"-"`
	Retained   []int              `json:"retained"` // ascending original indices
	Removed    []Removal          `json:"removed"`  // in removal order
	Criterion  string             `json:"criterion"`
	Requested  int                `json:"requested"`
	Clamped    bool               `json:"clamped"`
}

// MetricsInterface defines the metrics Select reports to.
type MetricsInterface interface {
	SBSRemovalsInc()
}

// Selector runs backward selection with a fixed criterion.
type Selector struct {
	criterion Criterion
	metrics   MetricsInterface
}

// New creates a Selector. A nil criterion selects Variance.
func New(criterion Criterion, metrics MetricsInterface) *Selector {
	if criterion == nil {
		criterion = Variance{}
	}
	return &Selector{criterion: criterion, metrics: metrics}
}

// Select is shorthand for New(criterion, nil).Select(c, target).
func Select(c dataset.Collection, target int, criterion Criterion) (*Result, error) {
	return New(criterion, nil).Select(c, target)
}

// Select reduces every matrix of c to target columns. A target above the
// available width is clamped with a warning. The input is not modified.
func (s *Selector) Select(c dataset.Collection, target int) (*Result, error) {
	if target < 0 {
		return nil, fmt.Errorf("sbs: %w: negative target width %d", common.ErrInvalidArgument, target)
	}
	width, err := c.Width()
	if err != nil {
		return nil, fmt.Errorf("sbs: %w", err)
	}

	res := &Result{Criterion: s.criterion.Name(), Requested: target}
	if target > width {
		log.Warn().
			Int("requested", target).
			Int("available", width).
			Msg("Target width exceeds available indicators, keeping all")
		target = width
		res.Clamped = true
	}

	retained := make([]int, width)
	for i := range retained {
		retained[i] = i
	}

	for len(retained) > target {
		ranking := s.rank(c, retained)
		worst := ranking[0]
		res.Removed = append(res.Removed, worst)
		retained = without(retained, worst.Index)

		if s.metrics != nil {
			s.metrics.SBSRemovalsInc()
		}
		log.Debug().
			Int("index", worst.Index).
			Float64("score", worst.Score).
			Int("remaining", len(retained)).
			Msg("Removed least relevant indicator")
	}

	res.Retained = retained
	res.Collection = c.Project(retained)
	return res, nil
}

// rank scores every retained column and orders them by ascending score.
// Equal scores keep ascending index order.
func (s *Selector) rank(c dataset.Collection, retained []int) []Removal {
	ranking := make([]Removal, len(retained))
	for i, col := range retained {
		ranking[i] = Removal{Index: col, Score: s.criterion.Score(columnGroups(c, col))}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score < ranking[j].Score
	})
	return ranking
}

// columnGroups gathers column col of every matrix, one group per class.
func columnGroups(c dataset.Collection, col int) [][]float64 {
	groups := make([][]float64, len(c))
	for i, m := range c {
		values := make([]float64, len(m.Rows))
		for r, row := range m.Rows {
			values[r] = row[col]
		}
		groups[i] = values
	}
	return groups
}

func without(indices []int, drop int) []int {
	out := make([]int, 0, len(indices)-1)
	for _, v := range indices {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
