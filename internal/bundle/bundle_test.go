package bundle

import (
	"errors"
	"testing"
	"time"

	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedBundle(t *testing.T) *Bundle {
	t.Helper()
	s, err := schema.New([]string{"a", "b"}, "label", []string{"CANDIDATE", "CONFIRMED", "FALSE POSITIVE"})
	require.NoError(t, err)

	X := [][]float64{{0, 0}, {0, 1}, {5, 5}, {5, 6}, {10, 10}, {10, 11}}
	labels := []string{"CANDIDATE", "CANDIDATE", "CONFIRMED", "CONFIRMED", "FALSE POSITIVE", "FALSE POSITIVE"}

	enc := dataprep.FitLabelEncoder(labels)
	y, err := enc.EncodeAll(labels)
	require.NoError(t, err)

	scaler := dataprep.NewScaler(false)
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	forest := model.NewRandomForest(model.WithNEstimators(5), model.WithSeed(1))
	require.NoError(t, forest.Fit(scaled, y, enc.Len()))

	return &Bundle{
		FormatVersion: FormatVersion,
		Schema:        s,
		Scaler:        scaler,
		Labels:        enc,
		Classifier:    forest,
		Metadata: Metadata{
			RunID:     "run-1",
			TrainedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Features:  s.Features,
			Classes:   enc.Classes,
			Accuracy:  1,
			TrainRows: 6,
			Params:    forest.Params(),
		},
	}
}

func TestSaveLoad(t *testing.T) {
	b := fittedBundle(t)
	store := MemoryStore{}

	require.NoError(t, Save(store, "classifier", b))
	loaded, err := Load(store, "classifier")
	require.NoError(t, err)

	assert.Equal(t, b.Schema, loaded.Schema)
	assert.Equal(t, b.Scaler.Mean, loaded.Scaler.Mean)
	assert.Equal(t, b.Scaler.Scale, loaded.Scaler.Scale)
	assert.Equal(t, b.Labels.Classes, loaded.Labels.Classes)
	assert.Equal(t, "run-1", loaded.Metadata.RunID)
	assert.True(t, b.Metadata.TrainedAt.Equal(loaded.Metadata.TrainedAt))

	row, err := b.Scaler.TransformRow([]float64{5, 5})
	require.NoError(t, err)
	want, err := b.Classifier.PredictProba([][]float64{row})
	require.NoError(t, err)
	got, err := loaded.Classifier.PredictProba([][]float64{row})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_Overwrites(t *testing.T) {
	store := MemoryStore{}
	first := fittedBundle(t)
	require.NoError(t, Save(store, "k", first))

	second := fittedBundle(t)
	second.Metadata.RunID = "run-2"
	require.NoError(t, Save(store, "k", second))

	loaded, err := Load(store, "k")
	require.NoError(t, err)
	assert.Equal(t, "run-2", loaded.Metadata.RunID)
	assert.Len(t, store, 1)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(MemoryStore{}, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not a bundle"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"wrong version", func(b *Bundle) { b.FormatVersion = 99 }},
		{"nil classifier", func(b *Bundle) { b.Classifier = nil }},
		{"nil scaler", func(b *Bundle) { b.Scaler = nil }},
		{"nil labels", func(b *Bundle) { b.Labels = nil }},
		{"scaler width", func(b *Bundle) {
			b.Scaler = &dataprep.Scaler{Mean: []float64{0}, Scale: []float64{1}}
		}},
		{"unsorted labels", func(b *Bundle) {
			b.Labels = &dataprep.LabelEncoder{Classes: []string{"CONFIRMED", "CANDIDATE"}}
		}},
		{"duplicate labels", func(b *Bundle) {
			b.Labels = &dataprep.LabelEncoder{Classes: []string{"CANDIDATE", "CANDIDATE"}}
		}},
		{"unfitted classifier", func(b *Bundle) { b.Classifier = model.NewRandomForest() }},
		{"classifier missing a class", func(b *Bundle) {
			forest := model.NewRandomForest(model.WithNEstimators(3))
			require.NoError(t, forest.Fit([][]float64{{0, 0}, {1, 1}}, []int{0, 1}, 2))
			b.Classifier = forest
		}},
		{"foreign label", func(b *Bundle) {
			b.Labels = &dataprep.LabelEncoder{Classes: []string{"CANDIDATE", "REFUTED"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fittedBundle(t)
			tt.mutate(b)
			assert.ErrorIs(t, b.Validate(), ErrInvalid)

			_, err := Encode(b)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	var nilBundle *Bundle
	assert.ErrorIs(t, nilBundle.Validate(), ErrInvalid)
}
