package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vibration-diag/internal/common"
	"vibration-diag/internal/indicator"
	"vibration-diag/internal/signal"

	"github.com/rs/zerolog/log"
)

// Cache stores indicators keyed by class, location and file stamp.
type Cache interface {
	Lookup(class, location string, stamp signal.Stamp) (indicator.Indicators, bool)
	Save(class, location string, stamp signal.Stamp, ind indicator.Indicators) error
}

// ExtractionMetrics defines the metrics Build reports to.
type ExtractionMetrics interface {
	SignalsLoadedInc()
	IndicatorErrorsInc()
	ExtractionDurationObserve(float64)
}

// Builder turns per-class signal locations into indicator matrices.
type Builder struct {
	source  signal.Source
	workers int
	cache   Cache
	metrics ExtractionMetrics

	// SkipDegenerate drops signals whose indicators are undefined instead
	// of failing the build.
	SkipDegenerate bool
}

// NewBuilder creates a builder reading from source with up to workers
// concurrent extractions per class.
func NewBuilder(source signal.Source, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{source: source, workers: workers}
}

// WithCache enables the indicator cache. It is only consulted when the
// source also implements signal.Stater.
func (b *Builder) WithCache(c Cache) *Builder {
	b.cache = c
	return b
}

// WithMetrics attaches a metrics sink.
func (b *Builder) WithMetrics(m ExtractionMetrics) *Builder {
	b.metrics = m
	return b
}

// Build returns one matrix per class, in class order, with one row per
// signal in location order. Any extraction error aborts the build.
func (b *Builder) Build(ctx context.Context, classes []signal.Class) (Collection, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("build: %w: no classes", common.ErrEmptyDataset)
	}

	c := make(Collection, len(classes))
	for i, class := range classes {
		rows, err := b.buildClass(ctx, class)
		if err != nil {
			return nil, fmt.Errorf("build class %s: %w", class.Name, err)
		}
		c[i] = Matrix{Class: class.Name, Cols: indicator.FeatureWidth, Rows: rows}
		log.Debug().Str("class", class.Name).Int("signals", len(class.Paths)).Int("rows", len(rows)).Msg("Class indicators extracted")
	}

	if c.Rows() == 0 {
		return nil, fmt.Errorf("build: %w: no signals", common.ErrEmptyDataset)
	}
	return c, nil
}

func (b *Builder) buildClass(parent context.Context, class signal.Class) ([][]float64, error) {
	n := len(class.Paths)
	if n == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	vectors := make([]indicator.FeatureVector, n)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	jobs := make(chan int)

	workers := b.workers
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, err := b.extract(ctx, class.Name, class.Paths[i])
				if err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				vectors[i] = vec
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	rows := make([][]float64, 0, n)
	for _, vec := range vectors {
		if vec != nil {
			rows = append(rows, vec)
		}
	}
	return rows, nil
}

// extract returns nil without error for a skipped degenerate signal.
func (b *Builder) extract(ctx context.Context, class, location string) (indicator.FeatureVector, error) {
	start := time.Now()

	var (
		stamp     signal.Stamp
		cacheable bool
	)
	if b.cache != nil {
		if st, ok := b.source.(signal.Stater); ok {
			s, err := st.Stat(location)
			if err == nil {
				stamp, cacheable = s, true
				if ind, hit := b.cache.Lookup(class, location, stamp); hit {
					return ind.Features(), nil
				}
			}
		}
	}

	samples, err := b.source.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	if b.metrics != nil {
		b.metrics.SignalsLoadedInc()
	}

	ind, err := indicator.Extract(samples)
	if err != nil {
		if b.metrics != nil {
			b.metrics.IndicatorErrorsInc()
		}
		if b.SkipDegenerate && errors.Is(err, common.ErrDegenerateSignal) {
			log.Warn().Err(err).Str("class", class).Str("location", location).Msg("Skipping degenerate signal")
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	if cacheable {
		if err := b.cache.Save(class, location, stamp, ind); err != nil {
			log.Warn().Err(err).Str("location", location).Msg("Failed to cache indicators")
		}
	}
	if b.metrics != nil {
		b.metrics.ExtractionDurationObserve(time.Since(start).Seconds())
	}
	return ind.Features(), nil
}
