// Package ml serves predictions from a trained artifact bundle.
//
// A Predictor is built once at process start from whatever bundle the store
// holds. It never reloads: every request in a process lifetime sees the same
// schema, scaler and label map. When no usable bundle exists the predictor
// stays up in a degraded state and answers with a "model not loaded" error.
package ml

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"exoplanet-classifier/internal/bundle"
	"exoplanet-classifier/internal/common"
	"exoplanet-classifier/internal/schema"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrModelUnavailable is reported when no bundle was loaded.
	ErrModelUnavailable = errors.New(common.ErrMsgModelNotLoaded)
	// ErrPredictionFailure wraps any failure inside the predict path.
	ErrPredictionFailure = errors.New("prediction failed")
)

// Probabilities must sum to 1 within this tolerance.
const probabilityTolerance = 1e-6

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLUnavailableInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLDefaultedFeaturesAdd(int)
	MLCacheHitsInc()
}

// Response is the wire shape of a prediction. Exactly one of PredictedClass
// or Error is set.
type Response struct {
	PredictedClass     string             `json:"predicted_class,omitempty"`
	Probabilities      map[string]float64 `json:"probabilities,omitempty"`
	ClassProbabilities map[string]float64 `json:"class_probabilities,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// Prediction is the structured result of a successful predict.
type Prediction struct {
	ClassIndex    int
	Label         string
	Probabilities []float64
	Defaulted     []string
}

type Predictor struct {
	bundle   *bundle.Bundle
	loadErr  error
	loadedAt time.Time
	metrics  MetricsInterface
	cache    *lru.Cache[string, Prediction]

	driftWindow    int
	driftThreshold float64
	drift          *DriftMonitor

	predictions atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Option customizes a Predictor.
type Option func(*Predictor)

func WithMetrics(m MetricsInterface) Option {
	return func(p *Predictor) { p.metrics = m }
}

// WithCacheSize enables an LRU of the last n aligned inputs. 0 disables it.
func WithCacheSize(n int) Option {
	return func(p *Predictor) {
		if n <= 0 {
			p.cache = nil
			return
		}
		c, err := lru.New[string, Prediction](n)
		if err != nil {
			log.Warn().Err(err).Int("size", n).Msg("Prediction cache disabled")
			return
		}
		p.cache = c
	}
}

// WithDriftWindow tracks the last n inputs against the training feature
// statistics. A threshold <= 0 uses one training standard deviation.
func WithDriftWindow(n int, threshold float64) Option {
	return func(p *Predictor) {
		p.driftWindow = n
		p.driftThreshold = threshold
	}
}

// New builds a predictor around a loaded bundle.
func New(b *bundle.Bundle, opts ...Option) (*Predictor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	p := &Predictor{bundle: b, loadedAt: time.Now()}
	for _, opt := range opts {
		opt(p)
	}
	if p.driftWindow > 0 {
		p.drift = NewDriftMonitor(b.Schema.Features, b.Scaler.Mean, b.Scaler.Scale, p.driftWindow, p.driftThreshold)
	}
	if p.metrics != nil && !b.Metadata.TrainedAt.IsZero() {
		p.metrics.MLModelAgeSet(time.Since(b.Metadata.TrainedAt).Seconds())
	}
	return p, nil
}

// NewUnavailable returns a degraded predictor that answers every request
// with ErrModelUnavailable.
func NewUnavailable(reason error, opts ...Option) *Predictor {
	p := &Predictor{loadErr: reason, loadedAt: time.Now()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads the bundle at key once. A missing or invalid bundle is logged
// and yields a degraded predictor rather than an error.
func Load(store bundle.Store, key string, opts ...Option) *Predictor {
	b, err := bundle.Load(store, key)
	if err != nil {
		if errors.Is(err, bundle.ErrNotFound) {
			log.Warn().Str("key", key).Msg("Model bundle not found, predictions will be unavailable")
		} else {
			log.Error().Err(err).Str("key", key).Msg("Failed to load model bundle, predictions will be unavailable")
		}
		return NewUnavailable(err, opts...)
	}

	p, err := New(b, opts...)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Model bundle rejected, predictions will be unavailable")
		return NewUnavailable(err, opts...)
	}
	log.Info().
		Str("key", key).
		Str("run_id", b.Metadata.RunID).
		Strs("features", b.Schema.Features).
		Strs("classes", b.Labels.Classes).
		Msg("Model bundle loaded")
	return p
}

// Available reports whether a bundle is loaded.
func (p *Predictor) Available() bool {
	return p != nil && p.bundle != nil
}

// Predict runs one record through the pipeline and always returns a
// response; failures are reported in Response.Error.
func (p *Predictor) Predict(rec schema.Record) Response {
	pred, err := p.PredictRecord(rec)
	if err != nil {
		return Response{Error: errorMessage(err)}
	}

	classes := p.bundle.Labels.Classes
	resp := Response{
		PredictedClass:     pred.Label,
		Probabilities:      make(map[string]float64, len(pred.Probabilities)),
		ClassProbabilities: make(map[string]float64, len(pred.Probabilities)),
	}
	for i, v := range pred.Probabilities {
		resp.Probabilities[strconv.Itoa(i)] = v
		resp.ClassProbabilities[classes[i]] = v
	}
	return resp
}

func errorMessage(err error) string {
	if errors.Is(err, ErrModelUnavailable) {
		return common.ErrMsgModelNotLoaded
	}
	return err.Error()
}

// PredictRecord aligns rec to the schema, scales it and classifies it.
// Errors are ErrModelUnavailable or wrap ErrPredictionFailure.
func (p *Predictor) PredictRecord(rec schema.Record) (pred Prediction, err error) {
	if !p.Available() {
		if p != nil && p.metrics != nil {
			p.metrics.MLUnavailableInc()
		}
		return Prediction{}, ErrModelUnavailable
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPredictionFailure, r)
		}
		if err != nil {
			p.failures.Add(1)
			log.Warn().Err(err).Msg("Prediction failed")
		} else {
			p.predictions.Add(1)
		}
		if p.metrics != nil {
			if err != nil {
				p.metrics.MLFailuresInc()
			} else {
				p.metrics.MLPredictionsInc()
				p.metrics.MLPredictionScoresObserve(pred.Probabilities[pred.ClassIndex])
			}
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	b := p.bundle
	vec, defaulted, err := b.Schema.Align(rec)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrPredictionFailure, err)
	}
	p.drift.Observe(vec)
	if len(defaulted) > 0 {
		log.Debug().Strs("fields", defaulted).Msg("Absent features defaulted to 0")
		if p.metrics != nil {
			p.metrics.MLDefaultedFeaturesAdd(len(defaulted))
		}
	}

	var key string
	if p.cache != nil {
		key = cacheKey(vec)
		if cached, ok := p.cache.Get(key); ok {
			p.cacheHits.Add(1)
			if p.metrics != nil {
				p.metrics.MLCacheHitsInc()
			}
			cached.Probabilities = append([]float64(nil), cached.Probabilities...)
			cached.Defaulted = defaulted
			return cached, nil
		}
		p.cacheMisses.Add(1)
	}

	pred, err = p.classify(vec)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrPredictionFailure, err)
	}
	if p.cache != nil {
		p.cache.Add(key, pred)
		pred.Probabilities = append([]float64(nil), pred.Probabilities...)
	}
	pred.Defaulted = defaulted
	return pred, nil
}

func (p *Predictor) classify(vec []float64) (Prediction, error) {
	b := p.bundle
	row, err := b.Scaler.TransformRow(vec)
	if err != nil {
		return Prediction{}, err
	}
	probas, err := b.Classifier.PredictProba([][]float64{row})
	if err != nil {
		return Prediction{}, err
	}
	if len(probas) != 1 {
		return Prediction{}, fmt.Errorf("classifier returned %d rows for 1 input", len(probas))
	}
	dist := probas[0]
	if len(dist) != b.Labels.Len() {
		return Prediction{}, fmt.Errorf("classifier returned %d probabilities for %d classes", len(dist), b.Labels.Len())
	}
	for i, v := range dist {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return Prediction{}, fmt.Errorf("probability %d out of range: %v", i, v)
		}
	}
	if sum := floats.Sum(dist); math.Abs(sum-1) > probabilityTolerance {
		return Prediction{}, fmt.Errorf("probabilities sum to %v", sum)
	}

	idx := floats.MaxIdx(dist)
	label, err := b.Labels.Decode(idx)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{ClassIndex: idx, Label: label, Probabilities: dist}, nil
}

// cacheKey renders the aligned vector exactly, so equal keys mean equal
// model input.
func cacheKey(vec []float64) string {
	var sb strings.Builder
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return sb.String()
}

// HealthStatus is the availability summary served by the health probe.
type HealthStatus struct {
	Healthy         bool       `json:"healthy"`
	ModelLoaded     bool       `json:"model_loaded"`
	ModelVersion    string     `json:"model_version,omitempty"`
	TrainedAt       *time.Time `json:"trained_at,omitempty"`
	PredictionCount int64      `json:"prediction_count"`
	ErrorRate       float64    `json:"error_rate"`
	CacheHitRate    float64    `json:"cache_hit_rate"`
	LastError       string     `json:"last_error,omitempty"`
	UptimeSeconds   float64    `json:"uptime_seconds"`
}

// Health reports availability and request counters.
func (p *Predictor) Health() HealthStatus {
	if p == nil {
		return HealthStatus{LastError: common.ErrMsgModelNotLoaded}
	}
	h := HealthStatus{
		Healthy:         p.Available(),
		ModelLoaded:     p.Available(),
		PredictionCount: p.predictions.Load(),
		UptimeSeconds:   time.Since(p.loadedAt).Seconds(),
	}
	if total := h.PredictionCount + p.failures.Load(); total > 0 {
		h.ErrorRate = float64(p.failures.Load()) / float64(total)
	}
	if access := p.cacheHits.Load() + p.cacheMisses.Load(); access > 0 {
		h.CacheHitRate = float64(p.cacheHits.Load()) / float64(access)
	}
	if p.bundle != nil {
		h.ModelVersion = p.bundle.Metadata.RunID
		trainedAt := p.bundle.Metadata.TrainedAt
		h.TrainedAt = &trainedAt
	} else if p.loadErr != nil {
		h.LastError = p.loadErr.Error()
	} else {
		h.LastError = common.ErrMsgModelNotLoaded
	}
	return h
}

// ModelInfo describes the loaded bundle.
type ModelInfo struct {
	Loaded   bool              `json:"loaded"`
	Schema   schema.Schema     `json:"schema"`
	Classes  map[string]string `json:"classes,omitempty"`
	Metadata bundle.Metadata   `json:"metadata"`
	Drift    *DriftReport      `json:"drift,omitempty"`
}

// Info returns the schema, label map and training metadata of the bundle.
func (p *Predictor) Info() ModelInfo {
	if !p.Available() {
		return ModelInfo{}
	}
	b := p.bundle
	classes := make(map[string]string, b.Labels.Len())
	for i, c := range b.Labels.Classes {
		classes[strconv.Itoa(i)] = c
	}
	info := ModelInfo{Loaded: true, Schema: b.Schema, Classes: classes, Metadata: b.Metadata}
	if p.drift != nil {
		rep := p.drift.Report()
		info.Drift = &rep
	}
	return info
}
