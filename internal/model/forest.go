package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

func init() {
	gob.Register(&RandomForest{})
}

// ErrNotFitted is returned when predicting with an untrained forest.
var ErrNotFitted = errors.New("model: classifier not fitted")

// RandomForest is a bagged ensemble of CART trees. Exported fields are the
// persisted state; the forest round-trips through encoding/gob.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	Balanced        bool
	Seed            int64

	NClasses  int
	NFeatures int
	Trees     []*DecisionTree

	progress func()
	workers  int
}

// RandomForestOption configures a RandomForest.
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption {
	return func(f *RandomForest) { f.NEstimators = n }
}

// WithMaxDepth limits tree depth; 0 grows trees until leaves are pure.
func WithMaxDepth(d int) RandomForestOption {
	return func(f *RandomForest) { f.MaxDepth = d }
}

func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(f *RandomForest) { f.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the features considered per split; 0 means sqrt(p).
func WithMaxFeatures(n int) RandomForestOption {
	return func(f *RandomForest) { f.MaxFeatures = n }
}

func WithSeed(seed int64) RandomForestOption {
	return func(f *RandomForest) { f.Seed = seed }
}

func WithBootstrap(on bool) RandomForestOption {
	return func(f *RandomForest) { f.Bootstrap = on }
}

// WithBalancedClassWeight weights every class inversely to its frequency.
func WithBalancedClassWeight(on bool) RandomForestOption {
	return func(f *RandomForest) { f.Balanced = on }
}

// WithProgress registers a callback invoked once per fitted tree. It may be
// called from several goroutines.
func WithProgress(fn func()) RandomForestOption {
	return func(f *RandomForest) { f.progress = fn }
}

// WithWorkers bounds the number of trees fitted concurrently.
func WithWorkers(n int) RandomForestOption {
	return func(f *RandomForest) { f.workers = n }
}

// NewRandomForest returns an unfitted forest with 100 balanced, bootstrapped
// trees unless overridden.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	f := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Balanced:        true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit trains every tree on a bootstrap sample of (X, y). Probability vectors
// have nClasses entries even when some classes are absent from y. Tree i
// draws from its own generator seeded with Seed+i, so the result is
// independent of scheduling.
func (f *RandomForest) Fit(X [][]float64, y []int, nClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("model: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("model: %d rows but %d labels", len(X), len(y))
	}
	if f.NEstimators <= 0 {
		return fmt.Errorf("model: n_estimators must be positive, got %d", f.NEstimators)
	}
	if f.MinSamplesLeaf < 1 {
		f.MinSamplesLeaf = 1
	}
	if f.MinSamplesSplit < 2 {
		f.MinSamplesSplit = 2
	}

	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("model: row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}
	if nClasses < 1 {
		return fmt.Errorf("model: class count must be positive, got %d", nClasses)
	}
	for i, c := range y {
		if c < 0 || c >= nClasses {
			return fmt.Errorf("model: label %d at row %d outside [0, %d)", c, i, nClasses)
		}
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
	}
	maxFeatures = max(1, min(maxFeatures, nFeatures))

	classWeight := f.classWeights(y, nClasses)

	trees := make([]*DecisionTree, f.NEstimators)
	workers := f.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				trees[i] = f.fitTree(X, y, classWeight, nClasses, maxFeatures, f.Seed+int64(i))
				if f.progress != nil {
					f.progress()
				}
			}
		}()
	}
	for i := range trees {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	f.NClasses = nClasses
	f.NFeatures = nFeatures
	f.MaxFeatures = maxFeatures
	f.Trees = trees
	return nil
}

func (f *RandomForest) fitTree(X [][]float64, y []int, classWeight []float64, nClasses, maxFeatures int, seed int64) *DecisionTree {
	rnd := rand.New(rand.NewSource(seed))
	n := len(X)

	w := make([]float64, n)
	if f.Bootstrap {
		for k := 0; k < n; k++ {
			w[rnd.Intn(n)]++
		}
	} else {
		for i := range w {
			w[i] = 1
		}
	}

	idx := make([]int, 0, n)
	for i := range w {
		if w[i] == 0 {
			continue
		}
		w[i] *= classWeight[y[i]]
		idx = append(idx, i)
	}

	tree := &DecisionTree{
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     maxFeatures,
		NClasses:        nClasses,
	}
	tree.fit(X, y, w, idx, rnd)
	return tree
}

// classWeights returns n / (k * n_c) per class when balanced, else all ones.
func (f *RandomForest) classWeights(y []int, nClasses int) []float64 {
	weights := make([]float64, nClasses)
	if !f.Balanced {
		for c := range weights {
			weights[c] = 1
		}
		return weights
	}

	counts := make([]int, nClasses)
	for _, c := range y {
		counts[c]++
	}
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	for c, n := range counts {
		if n > 0 {
			weights[c] = float64(len(y)) / float64(present*n)
		}
	}
	return weights
}

// NumClasses is the length of every probability vector.
func (f *RandomForest) NumClasses() int {
	if len(f.Trees) == 0 {
		return 0
	}
	return f.NClasses
}

// PredictProba averages the leaf distributions of all trees.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != f.NFeatures {
			return nil, fmt.Errorf("model: row %d has %d features, expected %d", i, len(row), f.NFeatures)
		}
		p := make([]float64, f.NClasses)
		for _, t := range f.Trees {
			for c, v := range t.predictRow(row) {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(f.Trees))
		}
		out[i] = p
	}
	return out, nil
}

// Params returns the hyperparameters for run metadata.
func (f *RandomForest) Params() map[string]any {
	return map[string]any{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"balanced":          f.Balanced,
		"seed":              f.Seed,
	}
}
