package model

import (
	"fmt"
	"strings"
)

// Accuracy is the fraction of positions where yPred equals yTrue. It is 0
// for empty input.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ClassScore holds the per-class metrics of a report row.
type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a per-class precision/recall/F1 summary with macro and
// support-weighted averages.
type Report struct {
	Classes     []ClassScore `json:"classes"`
	Accuracy    float64      `json:"accuracy"`
	MacroAvg    ClassScore   `json:"macro_avg"`
	WeightedAvg ClassScore   `json:"weighted_avg"`
	Support     int          `json:"support"`
}

// ClassificationReport scores yPred against yTrue. labels[i] names class i;
// classes absent from both vectors still get a zero row.
func ClassificationReport(yTrue, yPred []int, labels []string) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("model: %d true labels but %d predictions", len(yTrue), len(yPred))
	}
	k := len(labels)
	tp := make([]int, k)
	predicted := make([]int, k)
	actual := make([]int, k)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return Report{}, fmt.Errorf("model: class index out of range at row %d", i)
		}
		actual[t]++
		predicted[p]++
		if t == p {
			tp[t]++
		}
	}

	r := Report{
		Accuracy:    Accuracy(yTrue, yPred),
		Support:     len(yTrue),
		MacroAvg:    ClassScore{Label: "macro avg"},
		WeightedAvg: ClassScore{Label: "weighted avg"},
	}
	for c := 0; c < k; c++ {
		s := ClassScore{
			Label:     labels[c],
			Precision: ratio(tp[c], predicted[c]),
			Recall:    ratio(tp[c], actual[c]),
			Support:   actual[c],
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		r.Classes = append(r.Classes, s)

		r.MacroAvg.Precision += s.Precision / float64(k)
		r.MacroAvg.Recall += s.Recall / float64(k)
		r.MacroAvg.F1 += s.F1 / float64(k)
		if r.Support > 0 {
			w := float64(s.Support) / float64(r.Support)
			r.WeightedAvg.Precision += s.Precision * w
			r.WeightedAvg.Recall += s.Recall * w
			r.WeightedAvg.F1 += s.F1 * w
		}
	}
	r.MacroAvg.Support = r.Support
	r.WeightedAvg.Support = r.Support
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as an aligned text table.
func (r Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Label))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	for _, c := range []ClassScore{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}
