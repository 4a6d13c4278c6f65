package trainer

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"exoplanet-classifier/internal/bundle"
	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/schema"
	"exoplanet-classifier/internal/source"
	"exoplanet-classifier/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLabels = []string{"CONFIRMED", "CANDIDATE", "FALSE POSITIVE"}

func tenRows() source.Static {
	return source.Static{
		{"x": 0.1, "z": 0.2, "label": "CANDIDATE"},
		{"x": 0.3, "z": 0.1, "label": "CANDIDATE"},
		{"x": 0.2, "z": 0.4, "label": "CANDIDATE"},
		{"x": 0.4, "z": 0.3, "label": "CANDIDATE"},
		{"x": 10.1, "z": 20.2, "label": "CONFIRMED"},
		{"x": 10.3, "z": 20.1, "label": "CONFIRMED"},
		{"x": 10.2, "z": 20.4, "label": "CONFIRMED"},
		{"x": 20.1, "z": 10.2, "label": "FALSE POSITIVE"},
		{"x": 20.3, "z": 10.1, "label": "FALSE POSITIVE"},
		{"x": 20.2, "z": 10.4, "label": "FALSE POSITIVE"},
	}
}

func testConfig(t *testing.T, features ...string) Config {
	t.Helper()
	if len(features) == 0 {
		features = []string{"x", "z"}
	}
	s, err := schema.New(features, "label", testLabels)
	require.NoError(t, err)
	return Config{
		Schema:    s,
		BundleKey: "classifier",
		TestRatio: 0.3,
		Seed:      42,
		NewClassifier: func() model.Classifier {
			return model.NewRandomForest(model.WithNEstimators(30), model.WithSeed(42))
		},
	}
}

type failingSource struct{}

func (failingSource) String() string { return "failing" }

func (failingSource) Fetch(context.Context) ([]schema.Record, error) {
	return nil, errors.Join(source.ErrSourceUnavailable, errors.New("connection refused"))
}

type MockMetrics struct {
	mu       sync.Mutex
	runs     int
	failures map[string]int
	accuracy float64
	rows     map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{failures: map[string]int{}, rows: map[string]int{}}
}

func (m *MockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *MockMetrics) TrainingFailuresInc(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[stage]++
}

func (m *MockMetrics) TrainingDurationObserve(float64) {}

func (m *MockMetrics) TrainingAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = v
}

func (m *MockMetrics) TrainingRowsSet(subset string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[subset] = n
}

type runLog []storage.RunRecord

func (r *runLog) StoreRun(run storage.RunRecord) error {
	*r = append(*r, run)
	return nil
}

func TestRun_EndToEnd(t *testing.T) {
	store := bundle.MemoryStore{}
	metrics := NewMockMetrics()
	var history runLog

	tr, err := New(tenRows(), store, testConfig(t), WithMetrics(metrics), WithRunRecorder(&history))
	require.NoError(t, err)

	rep, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Clean.Kept)
	assert.Equal(t, 7, rep.TrainRows)
	assert.Equal(t, 3, rep.TestRows)
	assert.Equal(t, []string{"CANDIDATE", "CONFIRMED", "FALSE POSITIVE"}, rep.Classes)

	b, err := bundle.Load(store, "classifier")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Schema.Len())
	assert.Equal(t, 3, b.Labels.Len())
	assert.Len(t, b.Scaler.Mean, 2)
	assert.Equal(t, rep.RunID, b.Metadata.RunID)

	for _, rec := range tenRows() {
		vec, _, err := b.Schema.Align(rec)
		require.NoError(t, err)
		row, err := b.Scaler.TransformRow(vec)
		require.NoError(t, err)
		pred, err := model.Predict(b.Classifier, [][]float64{row})
		require.NoError(t, err)
		label, err := b.Labels.Decode(pred[0])
		require.NoError(t, err)
		assert.Equal(t, rec["label"], label)
	}

	assert.Equal(t, 1, metrics.runs)
	assert.Equal(t, 7, metrics.rows["train"])
	require.Len(t, history, 1)
	assert.Equal(t, rep.RunID, history[0].RunID)
	assert.Equal(t, 10, history[0].Cleaned)

	text := rep.String()
	assert.True(t, strings.Contains(text, `0: "CANDIDATE"`))
	assert.True(t, strings.Contains(text, "weighted avg"))
}

func TestRun_SingletonClassServes(t *testing.T) {
	rows := source.Static{
		{"x": 0.1, "z": 0.2, "label": "CANDIDATE"},
		{"x": 0.3, "z": 0.1, "label": "CANDIDATE"},
		{"x": 0.2, "z": 0.4, "label": "CANDIDATE"},
		{"x": 0.4, "z": 0.3, "label": "CANDIDATE"},
		{"x": 10.1, "z": 20.2, "label": "CONFIRMED"},
		{"x": 10.3, "z": 20.1, "label": "CONFIRMED"},
		{"x": 10.2, "z": 20.4, "label": "CONFIRMED"},
		{"x": 20.1, "z": 10.2, "label": "FALSE POSITIVE"},
	}
	store := bundle.MemoryStore{}
	cfg := testConfig(t)
	cfg.TestRatio = 0.5

	tr, err := New(rows, store, cfg)
	require.NoError(t, err)
	rep, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.TrainRows)
	assert.Equal(t, 4, rep.TestRows)

	p := ml.Load(store, "classifier")
	require.True(t, p.Available())

	resp := p.Predict(schema.Record{"x": 20.2, "z": 10.3})
	require.Empty(t, resp.Error)
	assert.Len(t, resp.Probabilities, 3)
	assert.Contains(t, resp.ClassProbabilities, "FALSE POSITIVE")
}

func TestRun_StageOrder(t *testing.T) {
	var stages []Stage
	tr, err := New(tenRows(), bundle.MemoryStore{}, testConfig(t), WithStageHook(func(s Stage) {
		stages = append(stages, s)
	}))
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Stage{
		StageFetching, StageCleaning, StageEncoding, StageSplitting,
		StageScaling, StageFitting, StageEvaluating, StageBundling, StageDone,
	}, stages)
}

func TestRun_SourceUnavailable(t *testing.T) {
	store := bundle.MemoryStore{}
	metrics := NewMockMetrics()
	var stages []Stage
	tr, err := New(failingSource{}, store, testConfig(t), WithMetrics(metrics), WithStageHook(func(s Stage) {
		stages = append(stages, s)
	}))
	require.NoError(t, err)

	rep, err := tr.Run(context.Background())
	assert.Nil(t, rep)
	require.ErrorIs(t, err, source.ErrSourceUnavailable)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageFetching, stageErr.Stage)
	assert.Equal(t, []Stage{StageFetching, StageFailed}, stages)
	assert.Empty(t, store, "no bundle may be written on failure")
	assert.Equal(t, 1, metrics.failures["fetching"])
}

func TestRun_EmptyDataset(t *testing.T) {
	store := bundle.MemoryStore{}
	src := source.Static{
		{"x": "", "z": 1.0, "label": "CANDIDATE"},
		{"x": 1.0, "z": 1.0, "label": "NOT DISPOSITIONED"},
	}
	tr, err := New(src, store, testConfig(t))
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyDataset)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageCleaning, stageErr.Stage)
	assert.Empty(t, store)
}

func TestRun_RejectDegenerate(t *testing.T) {
	src := tenRows()
	for _, rec := range src {
		rec["flat"] = 1.0
	}
	cfg := testConfig(t, "x", "z", "flat")

	t.Run("clamp", func(t *testing.T) {
		rep, err := mustTrainer(t, src, bundle.MemoryStore{}, cfg).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"flat"}, rep.Degenerate)
	})

	t.Run("reject", func(t *testing.T) {
		store := bundle.MemoryStore{}
		cfg := cfg
		cfg.RejectDegenerate = true
		_, err := mustTrainer(t, src, store, cfg).Run(context.Background())

		var degenerate *dataprep.DegenerateFeatureError
		require.True(t, errors.As(err, &degenerate))
		var stageErr *StageError
		require.True(t, errors.As(err, &stageErr))
		assert.Equal(t, StageScaling, stageErr.Stage)
		assert.Empty(t, store)
	})
}

func TestRun_LabelMapDeterministic(t *testing.T) {
	rows := tenRows()
	shuffled := append(source.Static(nil), rows...)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var maps [][]string
	for _, src := range []source.Static{rows, shuffled} {
		store := bundle.MemoryStore{}
		_, err := mustTrainer(t, src, store, testConfig(t)).Run(context.Background())
		require.NoError(t, err)
		b, err := bundle.Load(store, "classifier")
		require.NoError(t, err)
		maps = append(maps, b.Labels.Classes)
	}
	assert.Equal(t, maps[0], maps[1])
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := bundle.MemoryStore{}
	_, err := mustTrainer(t, tenRows(), store, testConfig(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store)
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(nil, bundle.MemoryStore{}, cfg)
	assert.Error(t, err)

	bad := cfg
	bad.BundleKey = ""
	_, err = New(tenRows(), bundle.MemoryStore{}, bad)
	assert.Error(t, err)

	bad = cfg
	bad.TestRatio = 1
	_, err = New(tenRows(), bundle.MemoryStore{}, bad)
	assert.Error(t, err)
}

func TestPermutationImportance(t *testing.T) {
	// Only the first column separates the classes
	X := [][]float64{{0, 5}, {0.1, 1}, {0.2, 3}, {10, 2}, {10.1, 4}, {10.2, 0}}
	y := []int{0, 0, 0, 1, 1, 1}
	f := model.NewRandomForest(model.WithNEstimators(20), model.WithSeed(1), model.WithMaxFeatures(2))
	require.NoError(t, f.Fit(X, y, 2))

	got, err := PermutationImportance(f, X, y, []string{"signal", "noise"}, 5, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "signal", got[0].Feature)
	assert.Greater(t, got[0].Importance, got[1].Importance)

	none, err := PermutationImportance(f, nil, nil, []string{"signal", "noise"}, 5, 7)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "fetching", StageFetching.String())
	assert.Equal(t, "failed", StageFailed.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func mustTrainer(t *testing.T, src source.Source, store bundle.Store, cfg Config) *Trainer {
	t.Helper()
	tr, err := New(src, store, cfg)
	require.NoError(t, err)
	return tr
}
