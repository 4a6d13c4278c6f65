package trainer

import (
	"fmt"
	"strings"
	"time"

	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/storage"
)

// Report is the diagnostic output of a successful run.
type Report struct {
	RunID      string              `json:"run_id"`
	Source     string              `json:"source"`
	BundleKey  string              `json:"bundle_key"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Fetched    int                 `json:"fetched"`
	Clean      dataprep.CleanStats `json:"clean"`
	Classes    []string            `json:"classes"`
	TrainRows  int                 `json:"train_rows"`
	TestRows   int                 `json:"test_rows"`
	Degenerate []string            `json:"degenerate,omitempty"`
	Evaluation model.Report        `json:"evaluation"`
	Importance []FeatureImportance `json:"importance,omitempty"`
}

// Record converts the report into a run history entry.
func (r *Report) Record() storage.RunRecord {
	return storage.RunRecord{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		BundleKey:  r.BundleKey,
		Source:     r.Source,
		Fetched:    r.Fetched,
		Cleaned:    r.Clean.Kept,
		TrainRows:  r.TrainRows,
		TestRows:   r.TestRows,
		Accuracy:   r.Evaluation.Accuracy,
		MacroF1:    r.Evaluation.MacroAvg.F1,
		Classes:    r.Classes,
	}
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "Cleaned dataset: %d samples (%d fetched, %d incomplete, %d unknown label)\n",
		r.Clean.Kept, r.Fetched, r.Clean.Incomplete, r.Clean.UnknownLabel)

	mapping := make([]string, len(r.Classes))
	for i, c := range r.Classes {
		mapping[i] = fmt.Sprintf("%d: %q", i, c)
	}
	fmt.Fprintf(&b, "Class mapping: {%s}\n", strings.Join(mapping, ", "))
	fmt.Fprintf(&b, "Split: %d train / %d test\n", r.TrainRows, r.TestRows)
	if len(r.Degenerate) > 0 {
		fmt.Fprintf(&b, "Zero-variance features: %s\n", strings.Join(r.Degenerate, ", "))
	}

	fmt.Fprintf(&b, "\nAccuracy: %.4f\n\n", r.Evaluation.Accuracy)
	b.WriteString("Classification report:\n")
	b.WriteString(r.Evaluation.String())

	if len(r.Importance) > 0 {
		b.WriteString("\nPermutation importance:\n")
		for _, fi := range r.Importance {
			fmt.Fprintf(&b, "  %-20s %8.4f +/- %.4f\n", fi.Feature, fi.Importance, fi.StdDev)
		}
	}
	fmt.Fprintf(&b, "\nBundle saved to %q\n", r.BundleKey)
	return b.String()
}
