package dataprep

import (
	"fmt"
	"slices"
	"sort"
)

// UnknownLabelError is returned when a label or class index falls outside
// the frozen label map.
type UnknownLabelError struct {
	Label   string
	Index   int
	ByIndex bool
}

func (e *UnknownLabelError) Error() string {
	if e.ByIndex {
		return fmt.Sprintf("unknown class index %d", e.Index)
	}
	return fmt.Sprintf("unknown label %q", e.Label)
}

// LabelEncoder is a bijection between class labels and indices 0..k-1.
// Classes[i] is the label of index i.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder builds the map from the distinct observed labels sorted
// lexicographically, so the same label set always yields the same indices
// regardless of row order.
func FitLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{})
	classes := make([]string, 0, 3)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}

// Encode maps a label to its index.
func (e *LabelEncoder) Encode(label string) (int, error) {
	i, ok := slices.BinarySearch(e.Classes, label)
	if !ok {
		return 0, &UnknownLabelError{Label: label}
	}
	return i, nil
}

// EncodeAll maps every label, failing on the first unknown one.
func (e *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, err := e.Encode(l)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Decode maps an index back to its label.
func (e *LabelEncoder) Decode(index int) (string, error) {
	if index < 0 || index >= len(e.Classes) {
		return "", &UnknownLabelError{Index: index, ByIndex: true}
	}
	return e.Classes[index], nil
}

// Mapping returns index -> label pairs, convenient for logging.
func (e *LabelEncoder) Mapping() map[int]string {
	m := make(map[int]string, len(e.Classes))
	for i, c := range e.Classes {
		m[i] = c
	}
	return m
}
