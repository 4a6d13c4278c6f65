package trainer

import (
	"fmt"
	"math/rand"
	"sort"

	"exoplanet-classifier/internal/model"

	"gonum.org/v1/gonum/stat"
)

// FeatureImportance is the mean drop in accuracy when one feature column is
// shuffled, over several repeats.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	StdDev     float64 `json:"std_dev"`
}

// PermutationImportance scores each feature of X by shuffling its column and
// re-measuring accuracy against y. Results are sorted most important first.
func PermutationImportance(c model.Classifier, X [][]float64, y []int, features []string, repeats int, seed int64) ([]FeatureImportance, error) {
	if len(X) == 0 || repeats <= 0 {
		return nil, nil
	}
	if len(X[0]) != len(features) {
		return nil, fmt.Errorf("importance: %d columns but %d feature names", len(X[0]), len(features))
	}

	pred, err := model.Predict(c, X)
	if err != nil {
		return nil, err
	}
	baseline := model.Accuracy(y, pred)

	rnd := rand.New(rand.NewSource(seed))
	permuted := make([][]float64, len(X))
	for i := range X {
		permuted[i] = make([]float64, len(X[i]))
	}

	out := make([]FeatureImportance, len(features))
	drops := make([]float64, repeats)
	for j, name := range features {
		for r := 0; r < repeats; r++ {
			perm := rnd.Perm(len(X))
			for i := range X {
				copy(permuted[i], X[i])
				permuted[i][j] = X[perm[i]][j]
			}
			pred, err := model.Predict(c, permuted)
			if err != nil {
				return nil, err
			}
			drops[r] = baseline - model.Accuracy(y, pred)
		}
		mean, std := stat.MeanStdDev(drops, nil)
		if repeats == 1 {
			std = 0
		}
		out[j] = FeatureImportance{Feature: name, Importance: mean, StdDev: std}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
