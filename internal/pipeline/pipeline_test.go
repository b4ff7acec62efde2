package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vibration-diag/internal/cfg"
	"vibration-diag/internal/common"
	"vibration-diag/internal/indicator"
	"vibration-diag/internal/ml"
	"vibration-diag/internal/signal"
	"vibration-diag/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu              sync.Mutex
	loaded          int
	indicatorErrors int
	extractions     int
	removals        int
	predictions     int
	epochs          int
	runs            int
	errors          int
	accuracy        float64
}

func (m *countingMetrics) inc(p *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*p++
}

func (m *countingMetrics) SignalsLoadedInc()                 { m.inc(&m.loaded) }
func (m *countingMetrics) IndicatorErrorsInc()               { m.inc(&m.indicatorErrors) }
func (m *countingMetrics) ExtractionDurationObserve(float64) { m.inc(&m.extractions) }
func (m *countingMetrics) SBSRemovalsInc()                   { m.inc(&m.removals) }
func (m *countingMetrics) MLPredictionsInc()                 { m.inc(&m.predictions) }
func (m *countingMetrics) MLTrainingEpochsInc()              { m.inc(&m.epochs) }
func (m *countingMetrics) MLTrainingLossSet(float64)         {}
func (m *countingMetrics) MLTrainingDurationObserve(float64) {}
func (m *countingMetrics) RunDurationObserve(float64)        { m.inc(&m.runs) }
func (m *countingMetrics) ErrorsInc()                        { m.inc(&m.errors) }

func (m *countingMetrics) MLAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = v
}

var testClasses = []string{"healthy", "inner_race", "outer_race"}

// writeSignals creates perClass two-column CSV recordings for every class.
// Amplitude and impulse rate grow with the class index.
func writeSignals(t *testing.T, root string, perClass int) {
	t.Helper()
	for ci, class := range testClasses {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		for i := 1; i <= perClass; i++ {
			var b strings.Builder
			b.WriteString("time,data\n")
			amp := float64(ci+1) * (1 + 0.02*float64(i))
			for n := 0; n < 128; n++ {
				v := amp * math.Sin(2*math.Pi*float64(n)/16)
				if ci > 0 && n%(32/ci) == 0 {
					v += 3 * amp
				}
				fmt.Fprintf(&b, "%d,%.6f\n", n, v)
			}
			path := filepath.Join(dir, signal.FileName(i))
			require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
		}
	}
}

func testSettings(root string) cfg.Settings {
	s := cfg.Defaults()
	s.DataPath = root
	s.Offset = 2
	s.Epochs = 50
	s.Workers = 3
	s.OutputPath = filepath.Join(root, "out")
	return s
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 12)
	metrics := &countingMetrics{}

	result, err := Run(context.Background(), testSettings(root), Deps{
		Metrics: metrics,
		Rand:    rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)

	assert.Equal(t, testClasses, result.Classes)
	assert.Equal(t, []int{10, 10, 10}, result.SignalCounts)
	assert.Equal(t, 30, metrics.loaded)
	assert.Equal(t, 30, metrics.extractions)

	require.Len(t, result.Relevance, indicator.FeatureWidth)
	assert.InDelta(t, 1.0, result.Relevance[0].Normalized, 1e-12)

	require.NotNil(t, result.Selection)
	assert.Len(t, result.Selection.Retained, 3)
	assert.Len(t, result.Selection.Removed, indicator.FeatureWidth-3)
	assert.Equal(t, indicator.FeatureWidth-3, metrics.removals)
	assert.Len(t, result.SelectedFeatures, 3)

	assert.Equal(t, 21, result.TrainRows)
	assert.Equal(t, 9, result.TestRows)

	assert.Equal(t, 50, metrics.epochs)
	assert.Equal(t, 3, result.Network.Inputs())
	assert.Equal(t, 3, result.Network.Outputs())

	require.NotNil(t, result.Training)
	require.NotNil(t, result.Test)
	assert.Equal(t, 21, result.Training.Total)
	assert.Equal(t, 9, result.Test.Total)
	assert.Equal(t, result.Test.Accuracy, metrics.accuracy)
	assert.Len(t, result.Importance, 3)
	assert.Equal(t, 1, metrics.runs)
	assert.Zero(t, metrics.errors)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestRun_SeedIsReproducible(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 6)
	settings := testSettings(root)
	settings.Offset = 0
	settings.Seed = 99
	settings.Criterion = common.CriterionFisher

	a, err := Run(context.Background(), settings, Deps{})
	require.NoError(t, err)
	b, err := Run(context.Background(), settings, Deps{})
	require.NoError(t, err)

	assert.Equal(t, a.Selection.Retained, b.Selection.Retained)
	assert.Equal(t, a.Network.Params(), b.Network.Params())
	assert.Equal(t, common.CriterionFisher, a.Selection.Criterion)
}

func TestRun_Standardize(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 8)
	settings := testSettings(root)
	settings.Standardize = true
	settings.Seed = 5

	result, err := Run(context.Background(), settings, Deps{})
	require.NoError(t, err)
	require.NotNil(t, result.Standardizer)
	assert.Len(t, result.Standardizer.Means, 3)

	model := result.ModelFile()
	assert.Equal(t, result.Standardizer.Means, model.Means)
	assert.Equal(t, result.Selection.Retained, model.Retained)
}

func TestRun_WithCache(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 5)
	settings := testSettings(root)
	settings.Offset = 0
	settings.Seed = 3

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	first := &countingMetrics{}
	_, err = Run(context.Background(), settings, Deps{Cache: store, Metrics: first})
	require.NoError(t, err)
	assert.Equal(t, 15, first.loaded)

	second := &countingMetrics{}
	_, err = Run(context.Background(), settings, Deps{Cache: store, Metrics: second})
	require.NoError(t, err)
	assert.Zero(t, second.loaded, "every signal should come from the cache")

	records, err := store.ClassRecords("healthy")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRun_CacheFollowsColumn(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 4)

	// Append a third column holding twice the second.
	for _, class := range testClasses {
		for i := 1; i <= 4; i++ {
			path := filepath.Join(root, class, signal.FileName(i))
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
			var b strings.Builder
			b.WriteString(lines[0] + ",double\n")
			for _, line := range lines[1:] {
				fields := strings.Split(line, ",")
				var v float64
				_, err := fmt.Sscanf(fields[1], "%g", &v)
				require.NoError(t, err)
				fmt.Fprintf(&b, "%s,%.6f\n", line, 2*v)
			}
			require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
		}
	}

	settings := testSettings(root)
	settings.Offset = 0
	settings.Seed = 7

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	first := &countingMetrics{}
	_, err = Run(context.Background(), settings, Deps{Cache: store, Metrics: first})
	require.NoError(t, err)
	assert.Equal(t, 12, first.loaded)
	records, err := store.ClassRecords("healthy")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	singleEnergy := records[0].Indicators.Energy

	settings.Column = 2
	second := &countingMetrics{}
	_, err = Run(context.Background(), settings, Deps{Cache: store, Metrics: second})
	require.NoError(t, err)
	assert.Equal(t, 12, second.loaded, "a different column must not be served from the cache")

	records, err = store.ClassRecords("healthy")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.InDelta(t, 4*singleEnergy, records[0].Indicators.Energy, 1e-6*singleEnergy)

	third := &countingMetrics{}
	_, err = Run(context.Background(), settings, Deps{Cache: store, Metrics: third})
	require.NoError(t, err)
	assert.Zero(t, third.loaded)
}

// writeGradedSignals creates four classes of pure sine recordings whose
// amplitude grows with the class index. A small per-file jitter that does not
// trend with the file index keeps rows within a class distinct.
func writeGradedSignals(t *testing.T, root string, perClass int) []string {
	t.Helper()
	classes := []string{"grade_1", "grade_2", "grade_3", "grade_4"}
	amplitudes := []float64{0.5, 1.0, 1.5, 2.0}
	for ci, class := range classes {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		for i := 1; i <= perClass; i++ {
			amp := amplitudes[ci] * (1 + 0.02*float64((i*7)%5-2))
			var b strings.Builder
			b.WriteString("time,data\n")
			for n := 0; n < 128; n++ {
				fmt.Fprintf(&b, "%d,%.6f\n", n, amp*math.Sin(2*math.Pi*float64(n)/16))
			}
			path := filepath.Join(dir, signal.FileName(i))
			require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
		}
	}
	return classes
}

func TestRun_FourClassesSeparate(t *testing.T) {
	root := t.TempDir()
	classes := writeGradedSignals(t, root, 30)

	settings := testSettings(root)
	settings.Offset = 0
	settings.Epochs = 1000
	settings.Standardize = true
	settings.Seed = 42

	result, err := Run(context.Background(), settings, Deps{})
	require.NoError(t, err)

	assert.Equal(t, classes, result.Classes)
	assert.Equal(t, []int{30, 30, 30, 30}, result.SignalCounts)
	assert.Equal(t, 84, result.TrainRows)
	assert.Equal(t, 36, result.TestRows)
	assert.Equal(t, []string{"energy", "power", "k_factor"}, result.SelectedFeatures)
	assert.Equal(t, 4, result.Network.Outputs())

	require.NotNil(t, result.Test)
	assert.Equal(t, 1.0, result.Test.Accuracy)
	for actual, row := range result.Test.Confusion {
		for predicted, count := range row {
			if actual == predicted {
				assert.Equal(t, 9, count)
			} else {
				assert.Zero(t, count)
			}
		}
	}
}

func TestRun_Errors(t *testing.T) {
	root := t.TempDir()
	metrics := &countingMetrics{}

	_, err := Run(context.Background(), testSettings(filepath.Join(root, "missing")), Deps{Metrics: metrics})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 1, metrics.errors)

	_, err = Run(context.Background(), testSettings(root), Deps{})
	assert.ErrorIs(t, err, common.ErrEmptyDataset)

	writeSignals(t, root, 3)
	settings := testSettings(root)
	settings.Criterion = "gini"
	_, err = Run(context.Background(), settings, Deps{})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	settings = testSettings(root)
	settings.Offset = 3
	_, err = Run(context.Background(), settings, Deps{})
	assert.ErrorIs(t, err, common.ErrEmptyDataset)
}

func TestClassifier(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 6)
	settings := testSettings(root)
	settings.Offset = 0
	settings.Seed = 11
	settings.Standardize = true

	result, err := Run(context.Background(), settings, Deps{})
	require.NoError(t, err)

	modelPath := filepath.Join(root, "out", "model.json")
	_, err = ml.SaveModel(modelPath, result.Network, result.ModelFile())
	require.NoError(t, err)

	source := signal.NewCSVSource(settings.Column, settings.Separator)
	classifier, err := LoadClassifier(modelPath, source)
	require.NoError(t, err)

	location := filepath.Join(root, "outer_race", signal.FileName(6))
	diagnosis, err := classifier.Classify(context.Background(), location)
	require.NoError(t, err)
	assert.Contains(t, testClasses, diagnosis.Class)
	require.Len(t, diagnosis.Outputs, 3)

	samples, err := source.Read(context.Background(), location)
	require.NoError(t, err)
	ind, err := indicator.Extract(samples)
	require.NoError(t, err)
	features := ind.Features()
	x := make([]float64, len(result.Selection.Retained))
	for i, col := range result.Selection.Retained {
		x[i] = features[col]
	}
	scaled, err := result.Standardizer.Transform([][]float64{x})
	require.NoError(t, err)
	want, err := result.Network.Predict(scaled[0])
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, diagnosis.Outputs, 1e-12)

	_, err = classifier.Classify(context.Background(), filepath.Join(root, "nope.csv"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExpandLocations(t *testing.T) {
	root := t.TempDir()
	writeSignals(t, root, 3)
	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o750))

	single := filepath.Join(root, "healthy", signal.FileName(2))
	got, err := ExpandLocations([]string{
		" " + filepath.Join(root, "outer_race") + " ",
		"",
		single,
		"http://sensor.local/acc.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "outer_race", signal.FileName(1)),
		filepath.Join(root, "outer_race", signal.FileName(2)),
		filepath.Join(root, "outer_race", signal.FileName(3)),
		single,
		"http://sensor.local/acc.csv",
	}, got)

	_, err = ExpandLocations([]string{empty})
	assert.ErrorIs(t, err, common.ErrEmptyDataset)

	// Missing paths are left for the source to report.
	missing := filepath.Join(root, "nope.csv")
	got, err = ExpandLocations([]string{missing})
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, got)
}

func TestFeatureNames(t *testing.T) {
	assert.Equal(t, []string{"energy", "rms", "k_factor"}, FeatureNames([]int{0, 4, 7}))
	assert.Equal(t, []string{"column_9"}, FeatureNames([]int{9}))
}
