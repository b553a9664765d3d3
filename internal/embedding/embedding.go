// Package embedding produces paired dense+sparse vector representations for
// text, singly or batched, via external embedding providers.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrProvider is returned when an embedding provider call fails.
	ErrProvider = errors.New("embedding provider request failed")

	// ErrUnexpectedSparseShape is returned when a sparse provider response
	// matches none of the known shapes.
	ErrUnexpectedSparseShape = errors.New("unexpected sparse embedding shape")
)

// DenseEmbedding is a dense vector. Dimension always equals len(Values) and is
// fixed by the embedding model.
type DenseEmbedding struct {
	Values    []float32
	Dimension int
}

// SparseEmbedding holds parallel index/weight arrays. Indices are token or
// feature identifiers from a fixed vocabulary; values are non-negative weights.
type SparseEmbedding struct {
	Indices []uint32
	Values  []float32
}

// HybridEmbedding pairs dense and sparse representations with the source text
// and metadata for round-tripping through storage.
type HybridEmbedding struct {
	Dense    DenseEmbedding
	Sparse   SparseEmbedding
	Text     string
	Metadata map[string]string
}

// DenseProvider generates dense embeddings. The batch form issues one network
// call and returns embeddings in input order.
type DenseProvider interface {
	EmbedDense(ctx context.Context, text string) (DenseEmbedding, error)
	EmbedDenseBatch(ctx context.Context, texts []string) ([]DenseEmbedding, error)
}

// SparseProvider generates sparse embeddings. The batch form issues one
// network call and returns embeddings in input order.
type SparseProvider interface {
	EmbedSparse(ctx context.Context, text string) (SparseEmbedding, error)
	EmbedSparseBatch(ctx context.Context, texts []string) ([]SparseEmbedding, error)
}
