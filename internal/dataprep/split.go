package dataprep

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds row indices of the train and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so every class keeps its overall
// proportion in both subsets. The test subset holds ceil(n * testRatio) rows,
// shared out across classes by largest remainder, and every class keeps at
// least one row in train so the classifier sees the whole label map. The
// result depends only on y, testRatio and seed.
func StratifiedSplit(y []int, testRatio float64, seed int64) (Split, error) {
	if len(y) == 0 {
		return Split{}, fmt.Errorf("split: no rows")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("split: test ratio must be in (0, 1), got %f", testRatio)
	}

	byClass := make(map[int][]int)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	sizes := make([]int, len(classes))
	for i, c := range classes {
		sizes[i] = len(byClass[c])
	}
	quota := testQuota(sizes, testRatio)

	rnd := rand.New(rand.NewSource(seed))
	var split Split
	for i, c := range classes {
		idx := byClass[c]
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		split.Test = append(split.Test, idx[:quota[i]]...)
		split.Train = append(split.Train, idx[quota[i]:]...)
	}

	rnd.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	rnd.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	return split, nil
}

// testQuota returns how many rows of each class go to test. A class of size
// s takes at most s-1 rows.
func testQuota(sizes []int, testRatio float64) []int {
	n := 0
	for _, s := range sizes {
		n += s
	}
	// The epsilon keeps 10 * 0.3 from ceiling to 4
	nTest := int(math.Ceil(float64(n)*testRatio - 1e-9))
	nTest = min(nTest, n-len(sizes))

	quota := make([]int, len(sizes))
	ideal := make([]float64, len(sizes))
	given := 0
	for i, s := range sizes {
		ideal[i] = float64(s) * float64(nTest) / float64(n)
		quota[i] = min(int(ideal[i]), s-1)
		given += quota[i]
	}
	for ; given < nTest; given++ {
		best := -1
		for i, s := range sizes {
			if quota[i] >= s-1 {
				continue
			}
			if best < 0 || ideal[i]-float64(quota[i]) > ideal[best]-float64(quota[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		quota[best]++
	}
	return quota
}

// Take gathers the rows at idx from X and y.
func Take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, k := range idx {
		outX[i] = X[k]
		outY[i] = y[k]
	}
	return outX, outY
}
