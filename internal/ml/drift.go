package ml

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const (
	// Below this many observations the report never flags a feature.
	minDriftSamples = 30
	// Default shift, in training standard deviations, that counts as drift.
	defaultDriftThreshold = 1.0
)

// FeatureDrift compares one feature's live inputs with its training data.
type FeatureDrift struct {
	Feature    string  `json:"feature"`
	TrainMean  float64 `json:"train_mean"`
	LiveMean   float64 `json:"live_mean"`
	LiveStdDev float64 `json:"live_std_dev"`
	// Shift is |LiveMean - TrainMean| in units of the training scale.
	Shift   float64 `json:"shift"`
	Drifted bool    `json:"drifted"`
}

// DriftReport summarizes the current window.
type DriftReport struct {
	Samples   int            `json:"samples"`
	Threshold float64        `json:"threshold"`
	Features  []FeatureDrift `json:"features"`
	Drifted   []string       `json:"drifted,omitempty"`
}

// DriftMonitor keeps the last windowSize aligned (unscaled) inputs and
// compares their mean with the scaler statistics the bundle was fitted on.
type DriftMonitor struct {
	mu        sync.Mutex
	features  []string
	mean      []float64
	scale     []float64
	threshold float64
	window    [][]float64
	next      int
	full      bool
}

// NewDriftMonitor returns a monitor over windowSize observations. A
// threshold <= 0 uses the default of one training standard deviation.
func NewDriftMonitor(features []string, mean, scale []float64, windowSize int, threshold float64) *DriftMonitor {
	if threshold <= 0 {
		threshold = defaultDriftThreshold
	}
	return &DriftMonitor{
		features:  slices.Clone(features),
		mean:      slices.Clone(mean),
		scale:     slices.Clone(scale),
		threshold: threshold,
		window:    make([][]float64, windowSize),
	}
}

// Observe records one aligned input vector. Vectors of the wrong width are
// ignored.
func (d *DriftMonitor) Observe(vec []float64) {
	if d == nil || len(d.window) == 0 || len(vec) != len(d.features) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.window[d.next]
	if slot == nil {
		slot = make([]float64, len(vec))
		d.window[d.next] = slot
	}
	copy(slot, vec)
	d.next++
	if d.next == len(d.window) {
		d.next = 0
		d.full = true
	}
}

func (d *DriftMonitor) samples() int {
	if d.full {
		return len(d.window)
	}
	return d.next
}

// Report computes per-feature shift over the current window.
func (d *DriftMonitor) Report() DriftReport {
	if d == nil {
		return DriftReport{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.samples()
	rep := DriftReport{Samples: n, Threshold: d.threshold, Features: make([]FeatureDrift, len(d.features))}
	column := make([]float64, n)
	for j, name := range d.features {
		fd := FeatureDrift{Feature: name, TrainMean: d.mean[j]}
		if n > 0 {
			for i := 0; i < n; i++ {
				column[i] = d.window[i][j]
			}
			fd.LiveMean, fd.LiveStdDev = stat.MeanStdDev(column, nil)
			if n == 1 {
				fd.LiveStdDev = 0
			}
			fd.Shift = math.Abs(fd.LiveMean-fd.TrainMean) / d.scale[j]
			fd.Drifted = n >= minDriftSamples && fd.Shift > d.threshold
		}
		if fd.Drifted {
			rep.Drifted = append(rep.Drifted, name)
		}
		rep.Features[j] = fd
	}
	return rep
}
