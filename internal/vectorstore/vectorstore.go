// Package vectorstore provides namespace-scoped storage and hybrid similarity
// search for dense+sparse vectors.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrWrite is returned when an upsert or delete fails.
	ErrWrite = errors.New("vector store write failed")

	// ErrQuery is returned when a similarity query fails.
	ErrQuery = errors.New("vector store query failed")
)

// SparseVector holds parallel index/weight arrays for keyword-style matching.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Record is one vector to upsert. ID is the stable compound key
// "{documentName}:{pageNumber}:{chunkIndex}"; re-upserting the same ID
// replaces the stored vector.
type Record struct {
	ID       string
	Dense    []float32
	Sparse   *SparseVector
	Text     string
	Metadata map[string]string
}

// Match is one similarity search hit. Score is a similarity; higher is more
// relevant.
type Match struct {
	ID      string
	Score   float32
	Text    string
	Payload map[string]string
}

// Store defines namespace-scoped vector storage. The namespace is the tenant
// isolation boundary: every read and write must be scoped to the owning
// user's namespace.
type Store interface {
	// EnsureNamespace creates the backing collection for an index/namespace
	// pair if it does not exist.
	EnsureNamespace(ctx context.Context, index, namespace string, dimension int) error

	// Upsert inserts or replaces records in the namespace.
	Upsert(ctx context.Context, index, namespace string, records []Record) error

	// Query returns the topK most similar records by combined dense+sparse
	// similarity, with payloads but without raw vector values.
	Query(ctx context.Context, index, namespace string, dense []float32, sparse *SparseVector, topK int) ([]Match, error)

	// DeleteDocument removes all vectors belonging to a document.
	DeleteDocument(ctx context.Context, index, namespace, documentName string) error

	// DeleteNamespace removes every vector in the namespace.
	DeleteNamespace(ctx context.Context, index, namespace string) error
}
