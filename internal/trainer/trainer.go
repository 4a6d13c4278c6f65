// Package trainer runs the offline pipeline that turns a raw dataset into an
// artifact bundle: fetch, clean, encode labels, split, scale, fit, evaluate
// and persist.
package trainer

import (
	"context"
	"fmt"
	"time"

	"exoplanet-classifier/internal/bundle"
	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/schema"
	"exoplanet-classifier/internal/source"
	"exoplanet-classifier/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the trainer
type MetricsInterface interface {
	TrainingRunsInc()
	TrainingFailuresInc(stage string)
	TrainingDurationObserve(float64)
	TrainingAccuracySet(float64)
	TrainingRowsSet(subset string, n int)
}

// RunRecorder keeps a history of completed runs.
type RunRecorder interface {
	StoreRun(run storage.RunRecord) error
}

// Config holds everything a run needs besides its collaborators.
type Config struct {
	Schema           schema.Schema
	BundleKey        string
	TestRatio        float64
	Seed             int64
	RejectDegenerate bool

	// ImportanceRepeats is the number of shuffles per feature when scoring
	// permutation importance. Zero skips it.
	ImportanceRepeats int

	// NewClassifier builds the untrained model. Defaults to a balanced
	// random forest seeded with Seed.
	NewClassifier func() model.Classifier
}

// Trainer executes training runs. A Trainer may run several times; each run
// starts from scratch.
type Trainer struct {
	cfg     Config
	src     source.Source
	store   bundle.Store
	runs    RunRecorder
	metrics MetricsInterface
	onStage func(Stage)
	now     func() time.Time
}

// Option customizes a Trainer.
type Option func(*Trainer)

func WithMetrics(m MetricsInterface) Option {
	return func(t *Trainer) { t.metrics = m }
}

func WithRunRecorder(r RunRecorder) Option {
	return func(t *Trainer) { t.runs = r }
}

// WithStageHook registers fn to be called as each stage begins, and with
// StageDone or StageFailed at the end.
func WithStageHook(fn func(Stage)) Option {
	return func(t *Trainer) { t.onStage = fn }
}

// New validates cfg and returns a Trainer.
func New(src source.Source, store bundle.Store, cfg Config, opts ...Option) (*Trainer, error) {
	if src == nil || store == nil {
		return nil, fmt.Errorf("trainer: source and store are required")
	}
	if cfg.Schema.Len() == 0 {
		return nil, fmt.Errorf("trainer: schema has no features")
	}
	if cfg.BundleKey == "" {
		return nil, fmt.Errorf("trainer: bundle key is required")
	}
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		return nil, fmt.Errorf("trainer: test ratio must be in (0, 1), got %f", cfg.TestRatio)
	}
	if cfg.NewClassifier == nil {
		seed := cfg.Seed
		cfg.NewClassifier = func() model.Classifier {
			return model.NewRandomForest(model.WithSeed(seed))
		}
	}

	t := &Trainer{cfg: cfg, src: src, store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run executes one training run. On failure the returned error is a
// *StageError and nothing has been written to the store.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		Source:    t.src.String(),
		BundleKey: t.cfg.BundleKey,
		StartedAt: t.now(),
	}
	logger := log.With().Str("run_id", rep.RunID).Logger()
	stage := StageFetching

	fail := func(err error) (*Report, error) {
		logger.Error().Err(err).Str("stage", stage.String()).Msg("Training run failed")
		if t.metrics != nil {
			t.metrics.TrainingFailuresInc(stage.String())
		}
		t.enter(StageFailed)
		return nil, &StageError{Stage: stage, Err: err}
	}
	next := func(s Stage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stage = s
		t.enter(s)
		logger.Debug().Str("stage", s.String()).Msg("Entering stage")
		return nil
	}

	t.enter(StageFetching)
	logger.Info().Str("source", rep.Source).Msg("Fetching dataset")
	records, err := t.src.Fetch(ctx)
	if err != nil {
		return fail(err)
	}
	rep.Fetched = len(records)

	if err := next(StageCleaning); err != nil {
		return fail(err)
	}
	ds, stats := dataprep.Clean(records, t.cfg.Schema)
	rep.Clean = stats
	logger.Info().
		Int("total", stats.Total).
		Int("incomplete", stats.Incomplete).
		Int("unknown_label", stats.UnknownLabel).
		Int("kept", stats.Kept).
		Msg("Dataset cleaned")
	if ds.Len() == 0 {
		return fail(ErrEmptyDataset)
	}

	if err := next(StageEncoding); err != nil {
		return fail(err)
	}
	labels := dataprep.FitLabelEncoder(ds.Labels)
	y, err := labels.EncodeAll(ds.Labels)
	if err != nil {
		return fail(fmt.Errorf("label map violated after cleaning: %w", err))
	}
	rep.Classes = labels.Classes
	logger.Info().Interface("class_mapping", labels.Mapping()).Msg("Label map frozen")

	if err := next(StageSplitting); err != nil {
		return fail(err)
	}
	split, err := dataprep.StratifiedSplit(y, t.cfg.TestRatio, t.cfg.Seed)
	if err != nil {
		return fail(err)
	}
	xTrain, yTrain := dataprep.Take(ds.Features, y, split.Train)
	xTest, yTest := dataprep.Take(ds.Features, y, split.Test)
	rep.TrainRows, rep.TestRows = len(xTrain), len(xTest)
	if t.metrics != nil {
		t.metrics.TrainingRowsSet("train", rep.TrainRows)
		t.metrics.TrainingRowsSet("test", rep.TestRows)
	}

	if err := next(StageScaling); err != nil {
		return fail(err)
	}
	scaler := dataprep.NewScaler(t.cfg.RejectDegenerate)
	xTrain, err = scaler.FitTransform(xTrain)
	if err != nil {
		return fail(err)
	}
	xTest, err = scaler.Transform(xTest)
	if err != nil {
		return fail(err)
	}
	for _, j := range scaler.Degenerate {
		rep.Degenerate = append(rep.Degenerate, t.cfg.Schema.Features[j])
	}
	if len(rep.Degenerate) > 0 {
		logger.Warn().Strs("features", rep.Degenerate).Msg("Zero-variance features, scale clamped to 1")
	}

	if err := next(StageFitting); err != nil {
		return fail(err)
	}
	clf := t.cfg.NewClassifier()
	fitStart := time.Now()
	if err := clf.Fit(xTrain, yTrain, labels.Len()); err != nil {
		return fail(err)
	}
	logger.Info().Dur("took", time.Since(fitStart)).Int("rows", len(xTrain)).Msg("Classifier fitted")

	if err := next(StageEvaluating); err != nil {
		return fail(err)
	}
	pred, err := model.Predict(clf, xTest)
	if err != nil {
		return fail(err)
	}
	rep.Evaluation, err = model.ClassificationReport(yTest, pred, labels.Classes)
	if err != nil {
		return fail(err)
	}
	rep.Importance, err = PermutationImportance(clf, xTest, yTest, t.cfg.Schema.Features, t.cfg.ImportanceRepeats, t.cfg.Seed)
	if err != nil {
		return fail(err)
	}
	logger.Info().Float64("accuracy", rep.Evaluation.Accuracy).Int("test_rows", rep.TestRows).Msg("Model evaluated")

	if err := next(StageBundling); err != nil {
		return fail(err)
	}
	b := &bundle.Bundle{
		FormatVersion: bundle.FormatVersion,
		Schema:        t.cfg.Schema,
		Scaler:        scaler,
		Labels:        labels,
		Classifier:    clf,
		Metadata: bundle.Metadata{
			RunID:     rep.RunID,
			TrainedAt: t.now().UTC(),
			Features:  t.cfg.Schema.Features,
			Classes:   labels.Classes,
			Accuracy:  rep.Evaluation.Accuracy,
			TrainRows: rep.TrainRows,
			TestRows:  rep.TestRows,
		},
	}
	if p, ok := clf.(interface{ Params() map[string]any }); ok {
		b.Metadata.Params = p.Params()
	}
	if err := bundle.Save(t.store, t.cfg.BundleKey, b); err != nil {
		return fail(err)
	}

	rep.FinishedAt = t.now()
	stage = StageDone
	t.enter(StageDone)
	logger.Info().Str("key", t.cfg.BundleKey).Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).Msg("Bundle saved")

	if t.metrics != nil {
		t.metrics.TrainingRunsInc()
		t.metrics.TrainingDurationObserve(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
		t.metrics.TrainingAccuracySet(rep.Evaluation.Accuracy)
	}
	if t.runs != nil {
		if err := t.runs.StoreRun(rep.Record()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run history")
		}
	}
	return rep, nil
}

func (t *Trainer) enter(s Stage) {
	if t.onStage != nil {
		t.onStage(s)
	}
}
