// Package ml provides the fault classifier: a two-layer tanh network trained
// by per-sample gradient descent, together with evaluation helpers
// (accuracy, confusion matrix, permutation importance).
package ml

// Classifier maps a feature vector to one score per class.
type Classifier interface {
	// Predict returns the raw output vector for one feature vector.
	Predict(features []float64) ([]float64, error)
}

// MetricsInterface defines metrics methods needed by the network.
type MetricsInterface interface {
	MLPredictionsInc()
	MLTrainingEpochsInc()
	MLTrainingLossSet(float64)
	MLTrainingDurationObserve(float64)
	MLAccuracySet(float64)
}
