// Package report writes the outcome of a pipeline run to an output directory.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vibration-diag/internal/ml"
	"vibration-diag/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// Output file names.
const (
	SummaryFile   = "summary.txt"
	ResultFile    = "result.json"
	ConfusionFile = "confusion.csv"
	RelevanceFile = "relevance.csv"
	ModelFile     = "model.json"
)

// Reporter generates run reports
type Reporter struct {
	result     *pipeline.Result
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(result *pipeline.Result, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		outputPath: outputPath,
	}
}

// GenerateReport writes every report format and the trained model.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	if err := r.generateConfusion(); err != nil {
		return err
	}
	if err := r.generateRelevance(); err != nil {
		return err
	}
	if r.result.Network != nil {
		if _, err := ml.SaveModel(filepath.Join(r.outputPath, ModelFile), r.result.Network, r.result.ModelFile()); err != nil {
			return err
		}
	}
	return nil
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.result
	fmt.Fprintf(file, "VIBRATION DIAGNOSIS SUMMARY\n")
	fmt.Fprintf(file, "===========================\n\n")
	fmt.Fprintf(file, "Run: %s (%s)\n\n", res.StartTime.Format("2006-01-02 15:04:05"), res.EndTime.Sub(res.StartTime).Round(time.Millisecond))

	fmt.Fprintf(file, "DATASET\n")
	fmt.Fprintf(file, "-------\n")
	for i, class := range res.Classes {
		fmt.Fprintf(file, "%s: %d signals\n", class, res.SignalCounts[i])
	}
	fmt.Fprintf(file, "Train rows: %d\n", res.TrainRows)
	fmt.Fprintf(file, "Test rows: %d (split ratio %.2f)\n\n", res.TestRows, res.SplitRatio)

	fmt.Fprintf(file, "FEATURE SELECTION\n")
	fmt.Fprintf(file, "-----------------\n")
	if res.Selection != nil {
		fmt.Fprintf(file, "Criterion: %s\n", res.Selection.Criterion)
		if res.Selection.Clamped {
			fmt.Fprintf(file, "Requested width %d clamped to %d\n", res.Selection.Requested, len(res.Selection.Retained))
		}
		for _, removal := range res.Selection.Removed {
			fmt.Fprintf(file, "Removed %s (score %.6g)\n", pipeline.FeatureNames([]int{removal.Index})[0], removal.Score)
		}
	}
	fmt.Fprintf(file, "Selected: %v\n\n", res.SelectedFeatures)

	fmt.Fprintf(file, "CLASSIFIER\n")
	fmt.Fprintf(file, "----------\n")
	fmt.Fprintf(file, "Epochs: %d, learning rate: %g, standardized: %t\n", res.Epochs, res.LearningRate, res.Standardizer != nil)
	if res.Training != nil {
		fmt.Fprintf(file, "Training accuracy: %.2f%% (%d/%d)\n", res.Training.Accuracy*100, res.Training.Correct, res.Training.Total)
	}
	if res.Test != nil {
		fmt.Fprintf(file, "Test accuracy: %.2f%% (%d/%d)\n", res.Test.Accuracy*100, res.Test.Correct, res.Test.Total)
	}

	if len(res.Importance) > 0 {
		fmt.Fprintf(file, "\nPERMUTATION IMPORTANCE\n")
		fmt.Fprintf(file, "----------------------\n")
		for _, imp := range ml.TopFeatures(res.Importance, -1) {
			fmt.Fprintf(file, "%s: %.4f\n", imp.Name, imp.ImportanceScore)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, ResultFile)

	report := map[string]interface{}{
		"result":       r.result,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generateConfusion writes the test confusion matrix, falling back to the
// training matrix when there is no test set.
func (r *Reporter) generateConfusion() error {
	eval := r.result.Test
	if eval == nil {
		eval = r.result.Training
	}
	if eval == nil {
		return nil
	}

	csvPath := filepath.Join(r.outputPath, ConfusionFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create confusion matrix: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append([]string{"actual/predicted"}, r.result.Classes...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, row := range eval.Confusion {
		record := []string{r.className(i)}
		for _, n := range row {
			record = append(record, strconv.Itoa(n))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write confusion matrix: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Confusion matrix generated")
	return nil
}

// generateRelevance writes the criterion score of every indicator.
func (r *Reporter) generateRelevance() error {
	csvPath := filepath.Join(r.outputPath, RelevanceFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create relevance report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"feature", "score", "normalized"}); err != nil {
		return err
	}
	for _, s := range r.result.Relevance {
		record := []string{
			pipeline.FeatureNames([]int{s.Index})[0],
			strconv.FormatFloat(s.Value, 'g', -1, 64),
			fmt.Sprintf("%.4f", s.Normalized),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write relevance report: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Relevance report generated")
	return nil
}

func (r *Reporter) className(i int) string {
	if i < len(r.result.Classes) {
		return r.result.Classes[i]
	}
	return fmt.Sprintf("class_%d", i)
}
