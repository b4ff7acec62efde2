// Package pipeline composes signal discovery, indicator extraction, feature
// selection, splitting and network training into a single run.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"vibration-diag/internal/cfg"
	"vibration-diag/internal/dataset"
	"vibration-diag/internal/indicator"
	"vibration-diag/internal/ml"
	"vibration-diag/internal/sbs"
	"vibration-diag/internal/signal"

	"github.com/rs/zerolog/log"
)

// Metrics is the union of the metrics every stage reports to.
type Metrics interface {
	dataset.ExtractionMetrics
	sbs.MetricsInterface
	ml.MetricsInterface
	RunDurationObserve(float64)
	ErrorsInc()
}

// Deps are the collaborators of Run. Zero values select defaults.
type Deps struct {
	Source  signal.Source // local CSV files plus http(s) locations when nil
	Cache   dataset.Cache // no caching when nil
	Metrics Metrics
	Rand    *rand.Rand // seeded from settings when nil
}

// Result is everything a run learned.
type Result struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Classes      []string `json:"classes"`
	SignalCounts []int    `json:"signal_counts"`

	Relevance        []sbs.Score `json:"relevance"` // all indicator columns, before selection
	Selection        *sbs.Result `json:"selection"`
	SelectedFeatures []string    `json:"selected_features"`

	TrainRows    int                   `json:"train_rows"`
	TestRows     int                   `json:"test_rows"`
	Standardizer *dataset.Standardizer `json:"standardizer,omitempty"`

	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	SplitRatio   float64 `json:"split_ratio"`

	Network    *ml.Network            `json:"-"`
	Training   *ml.Evaluation         `json:"training"`
	Test       *ml.Evaluation         `json:"test,omitempty"` // nil when the split leaves no test rows
	Importance []ml.FeatureImportance `json:"importance,omitempty"`
}

// Run executes the full diagnosis pipeline described by settings.
func Run(ctx context.Context, settings cfg.Settings, deps Deps) (*Result, error) {
	start := time.Now()
	result, err := run(ctx, settings, deps)
	if deps.Metrics != nil {
		deps.Metrics.RunDurationObserve(time.Since(start).Seconds())
		if err != nil {
			deps.Metrics.ErrorsInc()
		}
	}
	if err != nil {
		return nil, err
	}
	result.StartTime = start
	result.EndTime = time.Now()
	return result, nil
}

func run(ctx context.Context, settings cfg.Settings, deps Deps) (*Result, error) {
	source := deps.Source
	if source == nil {
		source = &signal.Router{
			File:   signal.NewCSVSource(settings.Column, settings.Separator),
			Remote: signal.NewHTTPSource(settings.Column, settings.Separator, settings.HTTPTimeout),
		}
	}
	rng := deps.Rand
	if rng == nil && settings.Seed != 0 {
		rng = rand.New(rand.NewSource(settings.Seed))
	}

	criterion, err := sbs.ParseCriterion(settings.Criterion)
	if err != nil {
		return nil, err
	}

	classes, err := signal.Discover(settings.DataPath, settings.Offset)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", settings.DataPath).Int("classes", len(classes)).Int("offset", settings.Offset).Msg("Discovered signal classes")

	builder := dataset.NewBuilder(source, settings.Workers).WithMetrics(deps.Metrics)
	if deps.Cache != nil {
		builder.WithCache(deps.Cache)
	}
	builder.SkipDegenerate = settings.SkipDegenerate

	collection, err := builder.Build(ctx, classes)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Classes:      collection.Classes(),
		Epochs:       settings.Epochs,
		LearningRate: settings.LearningRate,
		SplitRatio:   settings.SplitRatio,
	}
	for _, m := range collection {
		result.SignalCounts = append(result.SignalCounts, len(m.Rows))
	}
	log.Info().Strs("classes", result.Classes).Ints("signals", result.SignalCounts).Msg("Indicator matrices built")

	result.Relevance, err = sbs.Relevance(collection, criterion)
	if err != nil {
		return nil, err
	}

	result.Selection, err = sbs.New(criterion, deps.Metrics).Select(collection, settings.TargetWidth)
	if err != nil {
		return nil, err
	}
	result.SelectedFeatures = FeatureNames(result.Selection.Retained)
	log.Info().Strs("features", result.SelectedFeatures).Str("criterion", criterion.Name()).Msg("Features selected")

	split, err := dataset.SplitCollection(result.Selection.Collection, settings.SplitRatio)
	if err != nil {
		return nil, err
	}
	result.TrainRows, result.TestRows = len(split.TrainRows), len(split.TestRows)
	log.Info().Int("train", result.TrainRows).Int("test", result.TestRows).Float64("ratio", settings.SplitRatio).Msg("Dataset split")

	if settings.Standardize {
		if err := standardize(&split, result); err != nil {
			return nil, err
		}
	}

	trainCfg := ml.Config{
		Epochs:       settings.Epochs,
		LearningRate: settings.LearningRate,
		LogEvery:     settings.LogEvery,
		Rand:         rng,
	}
	result.Network, err = ml.Train(split.TrainRows, split.TrainLabels, trainCfg, deps.Metrics)
	if err != nil {
		return nil, err
	}

	result.Training, err = ml.Evaluate(result.Network, split.TrainRows, split.TrainLabels)
	if err != nil {
		return nil, err
	}
	log.Info().Float64("accuracy", result.Training.Accuracy).Msg("Training set evaluated")

	if len(split.TestRows) == 0 {
		log.Warn().Msg("No test rows, skipping evaluation")
		return result, nil
	}
	result.Test, err = ml.Evaluate(result.Network, split.TestRows, split.TestLabels)
	if err != nil {
		return nil, err
	}
	result.Importance, err = ml.PermutationImportance(result.Network, split.TestRows, split.TestLabels, result.SelectedFeatures)
	if err != nil {
		return nil, err
	}
	log.Info().Float64("accuracy", result.Test.Accuracy).Int("correct", result.Test.Correct).Int("total", result.Test.Total).Msg("Test set evaluated")

	return result, nil
}

func standardize(split *dataset.Split, result *Result) error {
	scaler, err := dataset.FitStandardizer(split.TrainRows)
	if err != nil {
		return err
	}
	if split.TrainRows, err = scaler.Transform(split.TrainRows); err != nil {
		return err
	}
	if split.TestRows, err = scaler.Transform(split.TestRows); err != nil {
		return err
	}
	result.Standardizer = scaler
	return nil
}

// FeatureNames maps indicator column indices to their names.
func FeatureNames(indices []int) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		if idx >= 0 && idx < indicator.FeatureWidth {
			names[i] = indicator.FeatureNames[idx]
		} else {
			names[i] = fmt.Sprintf("column_%d", idx)
		}
	}
	return names
}

// ModelFile captures the trained network and its preprocessing for SaveModel.
func (r *Result) ModelFile() ml.ModelFile {
	file := ml.ModelFile{
		Classes:  r.Classes,
		Features: r.SelectedFeatures,
		Retained: r.Selection.Retained,
	}
	if r.Test != nil {
		file.Accuracy = r.Test.Accuracy
	} else if r.Training != nil {
		file.Accuracy = r.Training.Accuracy
	}
	if r.Standardizer != nil {
		file.Means = r.Standardizer.Means
		file.Stds = r.Standardizer.Stds
	}
	return file
}
