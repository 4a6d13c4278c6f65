// Package metrics provides Prometheus metrics for the classifier.
// It covers the serving path (predictions, failures, latency, defaulted
// inputs, cache) and the training pipeline (runs, failures per stage,
// duration, accuracy, split sizes).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Serving metrics
	MLPredictions       prometheus.Counter   // Successful predictions
	MLFailures          prometheus.Counter   // Predictions that failed inside the pipeline
	MLUnavailable       prometheus.Counter   // Requests answered with "model not loaded"
	MLLatency           prometheus.Histogram // End-to-end predict latency in seconds
	MLModelAge          prometheus.Gauge     // Age of the loaded bundle in seconds
	MLPredictionScores  prometheus.Histogram // Probability of the predicted class
	MLDefaultedFeatures prometheus.Counter   // Schema features absent from requests
	MLCacheHits         prometheus.Counter   // Predictions served from the cache

	// Training metrics
	TrainingRuns     prometheus.Counter
	TrainingFailures *prometheus.CounterVec
	TrainingDuration prometheus.Histogram
	TrainingAccuracy prometheus.Gauge
	TrainingRows     *prometheus.GaugeVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of failed predictions",
		}),
		MLUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_unavailable_total",
			Help: "Total number of requests received while no model was loaded",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model bundle in seconds",
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of the predicted class probability",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLDefaultedFeatures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_defaulted_features_total",
			Help: "Total number of schema features absent from requests and filled with 0",
		}),
		MLCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of successful training runs",
		}),
		TrainingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of failed training runs by stage",
		}, []string{"stage"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Wall time of successful training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		TrainingAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_accuracy",
			Help: "Held-out accuracy of the last successful training run",
		}),
		TrainingRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "training_rows",
			Help: "Number of rows in each split of the last training run",
		}, []string{"subset"}),
	}
}

// GetErrorRate returns failed / (successful + failed) predictions, or 0 when
// nothing has been predicted yet.
func (m *Metrics) GetErrorRate(gatherer prometheus.Gatherer) float64 {
	var ok, failed float64

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, m := range mf.Metric {
				ok = m.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, m := range mf.Metric {
				failed = m.GetCounter().GetValue()
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}
