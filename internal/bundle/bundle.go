// Package bundle defines the artifact handed from the training pipeline to
// the serving pipeline: the fitted classifier together with the schema,
// scaler state and label map it was trained against.
package bundle

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"slices"
	"time"

	"exoplanet-classifier/internal/dataprep"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/schema"
)

// FormatVersion is bumped whenever the encoded layout changes.
const FormatVersion = 1

var (
	// ErrNotFound is returned by a Store when the key holds no bundle.
	ErrNotFound = errors.New("bundle not found")
	// ErrInvalid marks a bundle that violates its own invariants.
	ErrInvalid = errors.New("invalid bundle")
)

// Metadata describes the run that produced a bundle.
type Metadata struct {
	RunID     string         `json:"run_id"`
	TrainedAt time.Time      `json:"trained_at"`
	Features  []string       `json:"features"`
	Classes   []string       `json:"classes"`
	Accuracy  float64        `json:"accuracy"`
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`
	Params    map[string]any `json:"params,omitempty"`
}

// Bundle is immutable once built. The label map is Labels.Classes: index i
// of every probability vector the classifier returns is Labels.Classes[i].
type Bundle struct {
	FormatVersion int
	Schema        schema.Schema
	Scaler        *dataprep.Scaler
	Labels        *dataprep.LabelEncoder
	Classifier    model.Classifier
	Metadata      Metadata
}

// Validate checks the invariants consumers rely on.
func (b *Bundle) Validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil bundle", ErrInvalid)
	case b.FormatVersion != FormatVersion:
		return fmt.Errorf("%w: format version %d, expected %d", ErrInvalid, b.FormatVersion, FormatVersion)
	case b.Classifier == nil:
		return fmt.Errorf("%w: missing classifier", ErrInvalid)
	case b.Scaler == nil || !b.Scaler.Fitted():
		return fmt.Errorf("%w: missing scaler state", ErrInvalid)
	case b.Labels == nil || b.Labels.Len() == 0:
		return fmt.Errorf("%w: missing label map", ErrInvalid)
	case b.Schema.Len() == 0:
		return fmt.Errorf("%w: empty schema", ErrInvalid)
	}

	if len(b.Scaler.Mean) != b.Schema.Len() {
		return fmt.Errorf("%w: scaler has %d columns, schema has %d", ErrInvalid, len(b.Scaler.Mean), b.Schema.Len())
	}
	if !slices.IsSorted(b.Labels.Classes) {
		return fmt.Errorf("%w: label map is not sorted", ErrInvalid)
	}
	for i := 1; i < len(b.Labels.Classes); i++ {
		if b.Labels.Classes[i] == b.Labels.Classes[i-1] {
			return fmt.Errorf("%w: duplicate label %q", ErrInvalid, b.Labels.Classes[i])
		}
	}
	for _, c := range b.Labels.Classes {
		if !b.Schema.IsLabel(c) {
			return fmt.Errorf("%w: label %q outside the schema label set", ErrInvalid, c)
		}
	}
	if k := b.Classifier.NumClasses(); k != b.Labels.Len() {
		return fmt.Errorf("%w: classifier scores %d classes, label map has %d", ErrInvalid, k, b.Labels.Len())
	}
	return nil
}

// Encode serializes a valid bundle.
func Encode(b *Bundle) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes and validates a bundle.
func Decode(blob []byte) (*Bundle, error) {
	var b Bundle
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
