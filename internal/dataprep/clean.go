// Package dataprep turns raw tabular records into the numeric inputs a
// classifier consumes: cleaning, label encoding, standardization and
// stratified splitting. Everything here is fit once at training time and
// replayed unchanged at serving time through the artifact bundle.
package dataprep

import (
	"exoplanet-classifier/internal/schema"
)

// Dataset is a cleaned, fully populated feature matrix in schema order with
// its raw target labels.
type Dataset struct {
	Features [][]float64
	Labels   []string
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// CleanStats counts what Clean kept and why it dropped the rest.
type CleanStats struct {
	Total        int `json:"total"`
	Incomplete   int `json:"incomplete"`
	UnknownLabel int `json:"unknown_label"`
	Kept         int `json:"kept"`
}

// Clean projects every record onto the schema features plus the target,
// drops rows with a missing or non-numeric feature or a missing target, then
// drops rows whose target is not one of the schema labels. It does not
// modify records.
func Clean(records []schema.Record, s schema.Schema) (Dataset, CleanStats) {
	stats := CleanStats{Total: len(records)}
	out := Dataset{
		Features: make([][]float64, 0, len(records)),
		Labels:   make([]string, 0, len(records)),
	}

	for _, rec := range records {
		label, ok := targetOf(rec, s.Target)
		if !ok {
			stats.Incomplete++
			continue
		}

		row, ok := project(rec, s.Features)
		if !ok {
			stats.Incomplete++
			continue
		}

		if !s.IsLabel(label) {
			stats.UnknownLabel++
			continue
		}

		out.Features = append(out.Features, row)
		out.Labels = append(out.Labels, label)
	}

	stats.Kept = out.Len()
	return out, stats
}

func targetOf(rec schema.Record, target string) (string, bool) {
	raw, ok := rec[target]
	if !ok || raw == nil {
		return "", false
	}
	label, ok := raw.(string)
	if !ok || label == "" {
		return "", false
	}
	return label, true
}

func project(rec schema.Record, features []string) ([]float64, bool) {
	row := make([]float64, len(features))
	for i, name := range features {
		v, ok := schema.ToFloat(rec[name])
		if !ok {
			return nil, false
		}
		row[i] = v
	}
	return row, true
}
