package embedding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSparse_KnownShapes(t *testing.T) {
	wantIndices := []uint32{10, 42, 905}
	wantValues := []float32{0.5, 1.25, 0.125}

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "sparse wrapper",
			raw:  `{"sparse":{"indices":[10,42,905],"values":[0.5,1.25,0.125]}}`,
		},
		{
			name: "direct fields",
			raw:  `{"indices":[10,42,905],"values":[0.5,1.25,0.125]}`,
		},
		{
			name: "prefixed camel case",
			raw:  `{"sparseIndices":[10,42,905],"sparseValues":[0.5,1.25,0.125]}`,
		},
		{
			name: "prefixed snake case",
			raw:  `{"sparse_indices":[10,42,905],"sparse_values":[0.5,1.25,0.125]}`,
		},
		{
			name: "nested values object",
			raw:  `{"values":{"indices":[10,42,905],"values":[0.5,1.25,0.125]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sparse, err := normalizeSparse(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, wantIndices, sparse.Indices)
			assert.Equal(t, wantValues, sparse.Values)
			assert.Len(t, sparse.Values, len(sparse.Indices))
		})
	}
}

func TestNormalizeSparse_UnknownShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty object", raw: `{}`},
		{name: "values array only", raw: `{"values":[0.5,1.25]}`},
		{name: "mismatched lengths", raw: `{"indices":[1,2,3],"values":[0.5]}`},
		{name: "string payload", raw: `"usage exceeded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeSparse(json.RawMessage(tt.raw))
			require.ErrorIs(t, err, ErrUnexpectedSparseShape)
		})
	}
}

// Some passages tokenize to nothing the sparse model scores; the provider then
// returns empty parallel arrays, which is a valid zero vector, not a bad shape.
func TestNormalizeSparse_AcceptsEmptyArrays(t *testing.T) {
	sparse, err := normalizeSparse(json.RawMessage(`{"indices":[],"values":[]}`))
	require.NoError(t, err)
	assert.Empty(t, sparse.Indices)
	assert.Empty(t, sparse.Values)
}

func TestNormalizeSparse_TruncatesLongPayloadInError(t *testing.T) {
	raw := json.RawMessage(`{"unexpected":"` + string(make([]byte, 1024)) + `"}`)
	_, err := normalizeSparse(raw)
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 400)
}
