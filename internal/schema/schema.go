// Package schema defines the feature contract shared by training and serving.
//
// A Schema is produced once by a training run and embedded in the artifact
// bundle. Serving code never builds its own column order: every incoming
// record is projected onto Schema.Features with Align.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"exoplanet-classifier/internal/common"
)

// Record is a raw tabular row keyed by column name. Values are whatever the
// origin produced: strings from a CSV file, float64 from a JSON body, nil for
// nulls.
type Record map[string]any

// Schema is the ordered feature list plus the target column and the closed
// label set. It is treated as immutable once constructed.
type Schema struct {
	Features []string `json:"features"`
	Target   string   `json:"target"`
	Labels   []string `json:"labels"`
}

// New validates and copies the inputs into a Schema.
func New(features []string, target string, labels []string) (Schema, error) {
	if len(features) == 0 {
		return Schema{}, fmt.Errorf("schema: at least one feature is required")
	}
	if target == "" {
		return Schema{}, fmt.Errorf("schema: target column is required")
	}
	if len(labels) == 0 {
		return Schema{}, fmt.Errorf("schema: at least one label is required")
	}

	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f == "" {
			return Schema{}, fmt.Errorf("schema: empty feature name")
		}
		if f == target {
			return Schema{}, fmt.Errorf("schema: target %q cannot also be a feature", target)
		}
		if _, dup := seen[f]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate feature %q", f)
		}
		seen[f] = struct{}{}
	}

	return Schema{
		Features: slices.Clone(features),
		Target:   target,
		Labels:   slices.Clone(labels),
	}, nil
}

// Default returns the KOI schema used by the production model.
func Default() Schema {
	s, _ := New(common.DefaultFeatures(), common.TargetDisposition, common.CanonicalLabels())
	return s
}

// Len is the number of features.
func (s Schema) Len() int {
	return len(s.Features)
}

// IsLabel reports whether l belongs to the closed label set.
func (s Schema) IsLabel(l string) bool {
	return slices.Contains(s.Labels, l)
}

// Align projects rec onto the schema's feature order. Fields absent from rec
// are filled with 0 and reported in defaulted; fields not in the schema are
// ignored. A present field whose value is not numeric is an error.
func (s Schema) Align(rec Record) (vec []float64, defaulted []string, err error) {
	vec = make([]float64, len(s.Features))
	for i, name := range s.Features {
		raw, ok := rec[name]
		if !ok {
			defaulted = append(defaulted, name)
			continue
		}
		v, ok := ToFloat(raw)
		if !ok {
			return nil, nil, fmt.Errorf("feature %q: value %v is not numeric", name, raw)
		}
		vec[i] = v
	}
	return vec, defaulted, nil
}

// ToFloat coerces a raw cell to a finite float64. Nil, empty strings,
// unparsable strings, NaN and infinities report false.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
