package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces declared by the
// dataset, sbs, ml and pipeline packages, avoiding circular imports.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) SignalsLoadedInc() {
	w.m.SignalsLoaded.Inc()
}

func (w *MetricsWrapper) IndicatorErrorsInc() {
	w.m.IndicatorErrors.Inc()
}

func (w *MetricsWrapper) ExtractionDurationObserve(seconds float64) {
	w.m.ExtractionDuration.Observe(seconds)
}

func (w *MetricsWrapper) SBSRemovalsInc() {
	w.m.SBSRemovals.Inc()
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) MLTrainingEpochsInc() {
	w.m.TrainingEpochs.Inc()
}

func (w *MetricsWrapper) MLTrainingLossSet(loss float64) {
	w.m.TrainingLoss.Set(loss)
}

func (w *MetricsWrapper) MLTrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) MLAccuracySet(accuracy float64) {
	w.m.ModelAccuracy.Set(accuracy)
}

func (w *MetricsWrapper) RunDurationObserve(seconds float64) {
	w.m.RunDuration.Observe(seconds)
}

func (w *MetricsWrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}
