package model

import (
	"math/rand"
	"sort"
)

// Node is a node of a fitted decision tree. Rows with
// x[Feature] <= Threshold go left.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	Probas    []float64
}

// DecisionTree is a CART classifier using weighted Gini impurity. It is
// built by RandomForest and not exposed as a Classifier on its own.
type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	NClasses        int
	Root            *Node
}

type treeBuilder struct {
	tree *DecisionTree
	X    [][]float64
	y    []int
	w    []float64
	rnd  *rand.Rand
}

// fit grows the tree on the rows in idx, each weighted by w.
func (t *DecisionTree) fit(X [][]float64, y []int, w []float64, idx []int, rnd *rand.Rand) {
	b := &treeBuilder{tree: t, X: X, y: y, w: w, rnd: rnd}
	t.Root = b.build(idx, 0)
}

func (t *DecisionTree) predictRow(row []float64) []float64 {
	n := t.Root
	for n != nil && !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	if n == nil {
		return make([]float64, t.NClasses)
	}
	return n.Probas
}

type candidate struct {
	found     bool
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) build(idx []int, depth int) *Node {
	t := b.tree
	counts, total := b.classWeights(idx)
	leaf := &Node{Leaf: true, Probas: normalize(counts, total)}

	if isPure(counts) || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf {
		return leaf
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return leaf
	}

	best := b.bestSplit(idx, counts, total)
	if !best.found {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit draws features in random order and evaluates them until
// MaxFeatures non-constant ones have been tried.
func (b *treeBuilder) bestSplit(idx []int, counts []float64, total float64) candidate {
	t := b.tree
	parent := gini(counts, total)
	order := b.rnd.Perm(len(b.X[idx[0]]))

	maxFeatures := t.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > len(order) {
		maxFeatures = len(order)
	}

	sorted := make([]int, len(idx))
	left := make([]float64, t.NClasses)
	right := make([]float64, t.NClasses)

	var best candidate
	tried := 0
	for _, f := range order {
		if tried >= maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue
		}
		tried++

		clear(left)
		leftW := 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			left[b.y[i]] += b.w[i]
			leftW += b.w[i]

			v, next := b.X[i][f], b.X[sorted[k+1]][f]
			if v == next {
				continue
			}
			nLeft := k + 1
			if nLeft < t.MinSamplesLeaf || len(sorted)-nLeft < t.MinSamplesLeaf {
				continue
			}
			rightW := total - leftW
			if leftW <= 0 || rightW <= 0 {
				continue
			}
			for c := range right {
				right[c] = counts[c] - left[c]
			}

			impurity := (leftW*gini(left, leftW) + rightW*gini(right, rightW)) / total
			gain := parent - impurity
			if gain > best.gain+1e-12 {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = candidate{found: true, feature: f, threshold: threshold, gain: gain}
			}
		}
	}
	return best
}

func (b *treeBuilder) classWeights(idx []int) ([]float64, float64) {
	counts := make([]float64, b.tree.NClasses)
	total := 0.0
	for _, i := range idx {
		counts[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return counts, total
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64, total float64) []float64 {
	out := make([]float64, len(counts))
	if total <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}
