package common

import "errors"

// Error kinds shared by every pipeline stage. Stages wrap them with context
// via fmt.Errorf("...: %w", ErrX) and callers match with errors.Is.
var (
	// ErrDegenerateSignal is returned when an indicator is undefined for the
	// signal, e.g. zero standard deviation or zero RMS.
	ErrDegenerateSignal = errors.New("degenerate signal")

	// ErrShapeMismatch is returned for inconsistent feature widths across
	// matrices or between a training row and the network input width.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrEmptyDataset is returned when zero signals, rows or indicators are
	// supplied where at least one is required.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrInvalidArgument covers out-of-range scalar arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned by signal sources for unreadable locations.
	ErrNotFound = errors.New("signal not found")

	// ErrFormat is returned by signal sources when the column layout is violated.
	ErrFormat = errors.New("signal format error")
)
