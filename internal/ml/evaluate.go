package ml

import (
	"fmt"

	"vibration-diag/internal/common"
)

// Evaluation summarises classifier performance on labelled rows.
type Evaluation struct {
	Correct   int     `json:"correct"`
	Total     int     `json:"total"`
	Accuracy  float64 `json:"accuracy"`
	Confusion [][]int `json:"confusion"` // Confusion[actual][predicted]
}

// Evaluate classifies every row with the largest output component and
// compares it to the largest label component.
func Evaluate(c Classifier, rows, labels [][]float64) (*Evaluation, error) {
	eval, err := evaluate(c, rows, labels)
	if err != nil {
		return nil, err
	}
	if n, ok := c.(*Network); ok {
		n.observeAccuracy(eval.Accuracy)
	}
	return eval, nil
}

func evaluate(c Classifier, rows, labels [][]float64) (*Evaluation, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("evaluate: %w: no rows", common.ErrEmptyDataset)
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("evaluate: %w: %d rows but %d labels", common.ErrShapeMismatch, len(rows), len(labels))
	}

	classes := len(labels[0])
	eval := &Evaluation{Total: len(rows), Confusion: make([][]int, classes)}
	for i := range eval.Confusion {
		eval.Confusion[i] = make([]int, classes)
	}

	for i, row := range rows {
		out, err := c.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("evaluate: row %d: %w", i, err)
		}
		if len(out) != classes || len(labels[i]) != classes {
			return nil, fmt.Errorf("evaluate: row %d: %w: output width %d, label width %d, want %d",
				i, common.ErrShapeMismatch, len(out), len(labels[i]), classes)
		}
		actual, predicted := Argmax(labels[i]), Argmax(out)
		eval.Confusion[actual][predicted]++
		if actual == predicted {
			eval.Correct++
		}
	}
	eval.Accuracy = float64(eval.Correct) / float64(eval.Total)
	return eval, nil
}

// Argmax returns the index of the largest value, the first one on ties,
// or -1 for an empty slice.
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func (n *Network) observeAccuracy(accuracy float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.metrics != nil {
		n.metrics.MLAccuracySet(accuracy)
	}
}
