// Package signal reads vibration recordings. A recording is a two-column
// text file (time, acceleration); only the configured column is returned,
// as an ordered sequence of samples.
package signal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"vibration-diag/internal/common"
)

// Source returns the samples stored at a location.
type Source interface {
	Read(ctx context.Context, location string) ([]float64, error)
}

// Stamp identifies one version of a signal file as read by one source
// configuration. Layout names the column and separator the samples were
// parsed with, so the same file read differently gets a different stamp.
type Stamp struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Layout  string    `json:"layout,omitempty"`
}

// Stater is implemented by sources that can cheaply identify a file version
// without reading it.
type Stater interface {
	Stat(location string) (Stamp, error)
}

// CSVSource reads signals from local delimited text files.
type CSVSource struct {
	Column    int
	Separator rune
}

// NewCSVSource creates a file source reading the given zero-based column.
func NewCSVSource(column int, separator rune) *CSVSource {
	if separator == 0 {
		separator = ','
	}
	return &CSVSource{Column: column, Separator: separator}
}

func (s *CSVSource) Read(ctx context.Context, location string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", location, common.ErrNotFound, err)
	}
	defer file.Close()

	samples, err := ParseSamples(file, s.Column, s.Separator)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return samples, nil
}

func (s *CSVSource) Stat(location string) (Stamp, error) {
	info, err := os.Stat(location)
	if err != nil {
		return Stamp{}, fmt.Errorf("stat %s: %w: %v", location, common.ErrNotFound, err)
	}
	if info.IsDir() {
		return Stamp{}, fmt.Errorf("stat %s: %w: is a directory", location, common.ErrNotFound)
	}
	return Stamp{Size: info.Size(), ModTime: info.ModTime(), Layout: s.Layout()}, nil
}

// Layout describes how samples are parsed out of a file.
func (s *CSVSource) Layout() string {
	return fmt.Sprintf("column=%d separator=%q", s.Column, s.Separator)
}

// ParseSamples extracts one numeric column from delimited text. Records that
// are too short or whose field does not parse as a number (headers, blank
// lines) are skipped. Text yielding no samples at all is a format error.
func ParseSamples(r io.Reader, column int, separator rune) ([]float64, error) {
	if column < 0 {
		return nil, fmt.Errorf("%w: column %d", common.ErrInvalidArgument, column)
	}

	reader := csv.NewReader(r)
	reader.Comma = separator
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var samples []float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrFormat, err)
		}
		if len(record) <= column {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[column]), 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no numeric values in column %d", common.ErrFormat, column)
	}
	return samples, nil
}
