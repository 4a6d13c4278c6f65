// Package model holds the classifier capability used by the training and
// serving pipelines, a bagged decision-tree ensemble implementing it, and
// evaluation metrics.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Classifier is the opaque capability the pipelines depend on. Labels are
// encoded class indices 0..k-1 where k comes from the label map, not from the
// labels present in y; PredictProba returns, for every row, a distribution of
// length k where entry i is the probability of class i.
type Classifier interface {
	Fit(X [][]float64, y []int, nClasses int) error
	PredictProba(X [][]float64) ([][]float64, error)
	// NumClasses is k once fitted and 0 before.
	NumClasses() int
}

// Predict returns the arg-max class of every row.
func Predict(c Classifier, X [][]float64) ([]int, error) {
	probas, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probas))
	for i, p := range probas {
		if len(p) == 0 {
			return nil, fmt.Errorf("model: empty probability vector for row %d", i)
		}
		out[i] = floats.MaxIdx(p)
	}
	return out, nil
}
