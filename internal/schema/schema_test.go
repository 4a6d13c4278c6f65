package schema

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		target   string
		labels   []string
		wantErr  bool
	}{
		{"valid", []string{"a", "b"}, "y", []string{"X", "Y"}, false},
		{"no features", nil, "y", []string{"X"}, true},
		{"no target", []string{"a"}, "", []string{"X"}, true},
		{"no labels", []string{"a"}, "y", nil, true},
		{"duplicate feature", []string{"a", "a"}, "y", []string{"X"}, true},
		{"target as feature", []string{"a", "y"}, "y", []string{"X"}, true},
		{"empty feature name", []string{"a", ""}, "y", []string{"X"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.features, tc.target, tc.labels)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_CopiesInputs(t *testing.T) {
	features := []string{"a", "b"}
	s, err := New(features, "y", []string{"X"})
	require.NoError(t, err)

	features[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, s.Features)
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, "koi_disposition", s.Target)
	assert.True(t, s.IsLabel("FALSE POSITIVE"))
	assert.False(t, s.IsLabel("NOT DISPOSITIONED"))
}

func TestAlign_OrderAndExtras(t *testing.T) {
	s, err := New([]string{"a", "b", "c"}, "y", []string{"X"})
	require.NoError(t, err)

	canonical, defaulted, err := s.Align(Record{"a": 1.0, "b": 2.0, "c": 3.0})
	require.NoError(t, err)
	assert.Empty(t, defaulted)
	assert.Equal(t, []float64{1, 2, 3}, canonical)

	shuffled, defaulted, err := s.Align(Record{"noise": "ignored", "c": 3.0, "a": 1.0, "b": 2.0, "zzz": 99.0})
	require.NoError(t, err)
	assert.Empty(t, defaulted)
	assert.Equal(t, canonical, shuffled)
}

func TestAlign_MissingFieldsDefaultToZero(t *testing.T) {
	s, err := New([]string{"a", "b", "c"}, "y", []string{"X"})
	require.NoError(t, err)

	empty, defaulted, err := s.Align(Record{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, defaulted)

	zeros, _, err := s.Align(Record{"a": 0.0, "b": 0.0, "c": 0.0})
	require.NoError(t, err)
	assert.Equal(t, zeros, empty)

	partial, defaulted, err := s.Align(Record{"b": 5.0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 0}, partial)
	assert.Equal(t, []string{"a", "c"}, defaulted)
}

func TestAlign_NonNumericIsError(t *testing.T) {
	s, err := New([]string{"a"}, "y", []string{"X"})
	require.NoError(t, err)

	_, _, err = s.Align(Record{"a": "not a number"})
	assert.Error(t, err)

	_, _, err = s.Align(Record{"a": nil})
	assert.Error(t, err)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", 1.5, 1.5, true},
		{"int", 3, 3, true},
		{"bool true", true, 1, true},
		{"json number", json.Number("2.25"), 2.25, true},
		{"numeric string", " 7.5 ", 7.5, true},
		{"empty string", "", 0, false},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"slice", []int{1}, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToFloat(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
