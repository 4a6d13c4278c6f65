package ml

import (
	"sync"
	"testing"
	"time"

	"exoplanet-classifier/internal/bundle"
	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/schema"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	unavailable      int
	latencySum       float64
	modelAge         float64
	predictionScores []float64
	defaulted        int
	cacheHits        int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLUnavailableInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLDefaultedFeaturesAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaulted += n
}

func (m *MockMetrics) MLCacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

// testBundle fits a small forest on three well separated clusters over
// features "period" and "depth".
func testBundle(t testing.TB) *bundle.Bundle {
	t.Helper()
	s, err := schema.New([]string{"period", "depth"}, "koi_disposition",
		[]string{"CONFIRMED", "CANDIDATE", "FALSE POSITIVE"})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	X := [][]float64{
		{1, 1}, {1.2, 0.8}, {0.9, 1.1}, {1.1, 1.3},
		{10, 20}, {10.5, 21}, {9.5, 19}, {10.2, 20.5},
		{20, 5}, {21, 5.5}, {19, 4.5}, {20.5, 5.2},
	}
	labels := []string{
		"CANDIDATE", "CANDIDATE", "CANDIDATE", "CANDIDATE",
		"CONFIRMED", "CONFIRMED", "CONFIRMED", "CONFIRMED",
		"FALSE POSITIVE", "FALSE POSITIVE", "FALSE POSITIVE", "FALSE POSITIVE",
	}

	enc := dataprep.FitLabelEncoder(labels)
	y, err := enc.EncodeAll(labels)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	scaler := dataprep.NewScaler(false)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	forest := model.NewRandomForest(model.WithNEstimators(15), model.WithSeed(7))
	if err := forest.Fit(scaled, y, enc.Len()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	return &bundle.Bundle{
		FormatVersion: bundle.FormatVersion,
		Schema:        s,
		Scaler:        scaler,
		Labels:        enc,
		Classifier:    forest,
		Metadata: bundle.Metadata{
			RunID:     "test-run",
			TrainedAt: time.Now().Add(-time.Hour),
			Features:  s.Features,
			Classes:   enc.Classes,
		},
	}
}

// panicClassifier stands in for a broken model.
type panicClassifier struct{}

func (panicClassifier) Fit([][]float64, []int, int) error { return nil }

func (panicClassifier) NumClasses() int { return 3 }

func (panicClassifier) PredictProba([][]float64) ([][]float64, error) {
	panic("corrupt model state")
}
