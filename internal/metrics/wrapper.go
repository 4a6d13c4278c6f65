package metrics

// MetricsWrapper adapts Metrics to the method sets the predictor and the
// trainer depend on, so those packages never import prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLUnavailableInc() {
	w.m.MLUnavailable.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.m.MLPredictionScores.Observe(v)
}

func (w *MetricsWrapper) MLDefaultedFeaturesAdd(n int) {
	w.m.MLDefaultedFeatures.Add(float64(n))
}

func (w *MetricsWrapper) MLCacheHitsInc() {
	w.m.MLCacheHits.Inc()
}

func (w *MetricsWrapper) TrainingRunsInc() {
	w.m.TrainingRuns.Inc()
}

func (w *MetricsWrapper) TrainingFailuresInc(stage string) {
	w.m.TrainingFailures.WithLabelValues(stage).Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(v float64) {
	w.m.TrainingDuration.Observe(v)
}

func (w *MetricsWrapper) TrainingAccuracySet(v float64) {
	w.m.TrainingAccuracy.Set(v)
}

func (w *MetricsWrapper) TrainingRowsSet(subset string, n int) {
	w.m.TrainingRows.WithLabelValues(subset).Set(float64(n))
}
