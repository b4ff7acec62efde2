// Package metrics provides Prometheus metrics collection for the diagnosis
// pipeline. It covers signal loading, indicator extraction, feature
// selection, network training and prediction, exposed via the Prometheus
// metrics endpoint of the CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Extraction metrics
	SignalsLoaded      prometheus.Counter   // Signal files read and parsed
	IndicatorErrors    prometheus.Counter   // Signals whose indicators could not be computed
	ExtractionDuration prometheus.Histogram // Read plus extraction time per signal

	// Selection metrics
	SBSRemovals prometheus.Counter // Columns removed by backward selection

	// Training and prediction metrics
	TrainingEpochs   prometheus.Counter   // Completed training epochs
	TrainingLoss     prometheus.Gauge     // Mean squared error of the last epoch
	TrainingDuration prometheus.Histogram // Wall time of one Fit call
	ModelAccuracy    prometheus.Gauge     // Accuracy of the last evaluation
	Predictions      prometheus.Counter   // Forward passes through the network

	// System metrics
	RunDuration prometheus.Histogram // Wall time of one pipeline run
	ErrorsTotal prometheus.Counter   // Failed pipeline runs
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		SignalsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_loaded_total",
			Help: "Total number of signal files read",
		}),
		IndicatorErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "indicator_errors_total",
			Help: "Total number of signals whose indicators could not be computed",
		}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Time to read one signal and extract its indicators in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		SBSRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "sbs_removals_total",
			Help: "Total number of indicator columns removed by backward selection",
		}),
		TrainingEpochs: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_epochs_total",
			Help: "Total number of completed training epochs",
		}),
		TrainingLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_loss",
			Help: "Mean squared output error of the most recent epoch",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Network training duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_accuracy",
			Help: "Classification accuracy of the most recent evaluation",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of network predictions made",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of failed pipeline runs",
		}),
	}
}
