package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelFile is the on-disk form of a trained classifier together with the
// preprocessing needed to feed it.
type ModelFile struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Classes   []string  `json:"classes,omitempty"`
	Features  []string  `json:"features,omitempty"`
	Retained  []int     `json:"retained,omitempty"` // columns of the full indicator vector fed to the network
	Means     []float64 `json:"means,omitempty"`    // standardization, absent when disabled
	Stds      []float64 `json:"stds,omitempty"`
	Accuracy  float64   `json:"accuracy"`
	Params    Params    `json:"params"`
}

// SaveModel writes the network parameters and the metadata in meta as JSON.
// Version, CreatedAt and Params of meta are overwritten.
func SaveModel(path string, n *Network, meta ModelFile) (*ModelFile, error) {
	now := time.Now()
	file := meta
	file.Version = now.Format("20060102-150405")
	file.CreatedAt = now
	file.Params = n.Params()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write model: %w", err)
	}

	log.Info().Str("path", path).Str("version", file.Version).Msg("Model saved")
	return &file, nil
}

// LoadModel reads a model written by SaveModel and rebuilds the network.
func LoadModel(path string) (*Network, *ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model: %w", err)
	}

	var file ModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to decode model: %w", err)
	}

	n, err := NewNetworkFromParams(file.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", path, err)
	}
	return n, &file, nil
}
