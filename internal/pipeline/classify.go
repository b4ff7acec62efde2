package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"vibration-diag/internal/common"
	"vibration-diag/internal/indicator"
	"vibration-diag/internal/ml"
	"vibration-diag/internal/signal"
)

// Diagnosis is the classification of one signal.
type Diagnosis struct {
	Location string    `json:"location"`
	Class    string    `json:"class"`
	Outputs  []float64 `json:"outputs"`
}

// Classifier diagnoses individual signals with a saved model.
type Classifier struct {
	source  signal.Source
	network *ml.Network
	model   *ml.ModelFile
}

// LoadClassifier loads a model written after a Run.
func LoadClassifier(path string, source signal.Source) (*Classifier, error) {
	network, model, err := ml.LoadModel(path)
	if err != nil {
		return nil, err
	}
	if len(model.Retained) != network.Inputs() {
		return nil, fmt.Errorf("model %s: %w: %d retained columns for %d inputs", path, common.ErrShapeMismatch, len(model.Retained), network.Inputs())
	}
	if len(model.Classes) != 0 && len(model.Classes) != network.Outputs() {
		return nil, fmt.Errorf("model %s: %w: %d classes for %d outputs", path, common.ErrShapeMismatch, len(model.Classes), network.Outputs())
	}
	if len(model.Means) != 0 && (len(model.Means) != network.Inputs() || len(model.Stds) != network.Inputs()) {
		return nil, fmt.Errorf("model %s: %w: standardization width", path, common.ErrShapeMismatch)
	}
	return &Classifier{source: source, network: network, model: model}, nil
}

// Classify reads the signal at location and returns the class whose output
// component is largest.
func (c *Classifier) Classify(ctx context.Context, location string) (*Diagnosis, error) {
	samples, err := c.source.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	ind, err := indicator.Extract(samples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	features := ind.Features()
	x := make([]float64, len(c.model.Retained))
	for i, col := range c.model.Retained {
		if col < 0 || col >= len(features) {
			return nil, fmt.Errorf("%w: retained column %d", common.ErrShapeMismatch, col)
		}
		x[i] = features[col]
		if len(c.model.Means) == len(x) {
			x[i] -= c.model.Means[i]
			if c.model.Stds[i] > 0 {
				x[i] /= c.model.Stds[i]
			}
		}
	}

	out, err := c.network.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	d := &Diagnosis{Location: location, Outputs: out}
	idx := ml.Argmax(out)
	if idx < len(c.model.Classes) {
		d.Class = c.model.Classes[idx]
	} else {
		d.Class = fmt.Sprintf("class_%d", idx)
	}
	return d, nil
}

// ExpandLocations trims and drops blank entries, and replaces every local
// directory with its signal files in numeric order. Remote locations and
// plain files pass through unchanged.
func ExpandLocations(locations []string) ([]string, error) {
	var out []string
	for _, location := range locations {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		if signal.IsRemote(location) {
			out = append(out, location)
			continue
		}
		info, err := os.Stat(location)
		if err != nil || !info.IsDir() {
			out = append(out, location)
			continue
		}
		files, err := signal.ListSignalFiles(location)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: %w: no signal files", location, common.ErrEmptyDataset)
		}
		out = append(out, files...)
	}
	return out, nil
}
