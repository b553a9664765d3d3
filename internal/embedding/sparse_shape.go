package embedding

import (
	"encoding/json"
	"fmt"
)

// Sparse provider responses have appeared in several equivalent shapes across
// API/SDK versions. normalizeSparse runs an ordered sequence of shape matchers
// over the raw response item; the first match wins, and exhaustion yields
// ErrUnexpectedSparseShape.
func normalizeSparse(raw json.RawMessage) (SparseEmbedding, error) {
	matchers := []func(json.RawMessage) (SparseEmbedding, bool){
		matchSparseWrapper,
		matchDirectFields,
		matchPrefixedFields,
		matchNestedValues,
	}

	for _, match := range matchers {
		if sparse, ok := match(raw); ok {
			return sparse, nil
		}
	}

	return SparseEmbedding{}, fmt.Errorf("%w: %s", ErrUnexpectedSparseShape, truncateForError(raw))
}

// matchSparseWrapper handles the accessor-style shape where the vector is
// wrapped under a "sparse" key.
func matchSparseWrapper(raw json.RawMessage) (SparseEmbedding, bool) {
	var shape struct {
		Sparse *struct {
			Indices []uint32  `json:"indices"`
			Values  []float32 `json:"values"`
		} `json:"sparse"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil || shape.Sparse == nil {
		return SparseEmbedding{}, false
	}
	return validatePair(shape.Sparse.Indices, shape.Sparse.Values)
}

// matchDirectFields handles top-level "indices"/"values" fields.
func matchDirectFields(raw json.RawMessage) (SparseEmbedding, bool) {
	var shape struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return SparseEmbedding{}, false
	}
	return validatePair(shape.Indices, shape.Values)
}

// matchPrefixedFields handles the provider-specific "sparseIndices"/
// "sparseValues" (or snake_case) fields.
func matchPrefixedFields(raw json.RawMessage) (SparseEmbedding, bool) {
	var camel struct {
		Indices []uint32  `json:"sparseIndices"`
		Values  []float32 `json:"sparseValues"`
	}
	if err := json.Unmarshal(raw, &camel); err == nil {
		if sparse, ok := validatePair(camel.Indices, camel.Values); ok {
			return sparse, true
		}
	}

	var snake struct {
		Indices []uint32  `json:"sparse_indices"`
		Values  []float32 `json:"sparse_values"`
	}
	if err := json.Unmarshal(raw, &snake); err != nil {
		return SparseEmbedding{}, false
	}
	return validatePair(snake.Indices, snake.Values)
}

// matchNestedValues handles the shape where "values" is itself an object
// holding the parallel arrays.
func matchNestedValues(raw json.RawMessage) (SparseEmbedding, bool) {
	var shape struct {
		Values *struct {
			Indices []uint32  `json:"indices"`
			Values  []float32 `json:"values"`
		} `json:"values"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil || shape.Values == nil {
		return SparseEmbedding{}, false
	}
	return validatePair(shape.Values.Indices, shape.Values.Values)
}

// validatePair accepts parallel arrays of equal length. Both must be present;
// empty arrays are a valid sparse vector.
func validatePair(indices []uint32, values []float32) (SparseEmbedding, bool) {
	if indices == nil || values == nil || len(indices) != len(values) {
		return SparseEmbedding{}, false
	}
	return SparseEmbedding{Indices: indices, Values: values}, true
}

// truncateForError keeps provider payloads in error messages short.
func truncateForError(raw json.RawMessage) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
