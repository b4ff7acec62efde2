// Package dataset holds the per-class indicator matrices that flow between
// extraction, feature selection and classification, together with the
// builder that fills them from signal files and the train/test splitter.
package dataset

import (
	"fmt"

	"vibration-diag/internal/common"
)

// Matrix is the ordered set of feature rows belonging to one class.
type Matrix struct {
	Class string      `json:"class"`
	Cols  int         `json:"cols"` // declared width, consulted only when Rows is empty; 0 means unknown
	Rows  [][]float64 `json:"rows"`
}

// Width returns the column count of m and whether it is determinate.
func (m Matrix) Width() (int, bool) {
	if len(m.Rows) > 0 {
		return len(m.Rows[0]), true
	}
	if m.Cols > 0 {
		return m.Cols, true
	}
	return 0, false
}

// Collection is the ordered list of class matrices processed together.
type Collection []Matrix

// Width validates that every matrix in c shares one column count and returns it.
// Matrices without rows are exempt unless they declare a conflicting width.
func (c Collection) Width() (int, error) {
	if len(c) == 0 {
		return 0, fmt.Errorf("collection: %w: no class matrices", common.ErrEmptyDataset)
	}

	width, established := 0, false
	for ci, m := range c {
		for ri, row := range m.Rows {
			if !established {
				width, established = len(row), true
				continue
			}
			if len(row) != width {
				return 0, fmt.Errorf("collection: %w: class %d (%s) row %d has %d columns, want %d",
					common.ErrShapeMismatch, ci, m.Class, ri, len(row), width)
			}
		}
	}
	for ci, m := range c {
		if len(m.Rows) > 0 || m.Cols == 0 {
			continue
		}
		if !established {
			width, established = m.Cols, true
			continue
		}
		if m.Cols != width {
			return 0, fmt.Errorf("collection: %w: empty class %d (%s) declares %d columns, want %d",
				common.ErrShapeMismatch, ci, m.Class, m.Cols, width)
		}
	}
	return width, nil
}

// Rows returns the total number of rows across all classes.
func (c Collection) Rows() int {
	n := 0
	for _, m := range c {
		n += len(m.Rows)
	}
	return n
}

// Classes returns the class names in collection order.
func (c Collection) Classes() []string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.Class
	}
	return names
}

// Project returns a copy of c restricted to the given column indices, in the
// order given. The input is left untouched.
func (c Collection) Project(cols []int) Collection {
	out := make(Collection, len(c))
	for i, m := range c {
		rows := make([][]float64, len(m.Rows))
		for r, row := range m.Rows {
			projected := make([]float64, len(cols))
			for j, col := range cols {
				projected[j] = row[col]
			}
			rows[r] = projected
		}
		out[i] = Matrix{Class: m.Class, Cols: len(cols), Rows: rows}
	}
	return out
}

// OneHot returns a label of the given width with a single 1 at index.
func OneHot(index, width int) ([]float64, error) {
	if width <= 0 || index < 0 || index >= width {
		return nil, fmt.Errorf("one-hot: %w: index %d, width %d", common.ErrInvalidArgument, index, width)
	}
	label := make([]float64, width)
	label[index] = 1
	return label, nil
}

// Broadcast returns n independent copies of label.
func Broadcast(label []float64, n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), label...)
	}
	return out
}
