package embedding

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexrag/lexrag/internal/chunking"
)

const (
	// DefaultBatchSize is the number of chunks embedded per provider call.
	DefaultBatchSize = 100

	// DefaultBatchDelay is the pause between chunk batches, a static guard
	// against provider rate limits.
	DefaultBatchDelay = 100 * time.Millisecond
)

// Batch holds the result of embedding a set of chunks.
type Batch struct {
	Embeddings []HybridEmbedding

	// TotalTokens is an approximate count (ceil(len/4) per text), not an
	// exact tokenizer count.
	TotalTokens int
}

// HybridEmbedder produces paired dense+sparse representations by calling both
// providers concurrently and merging the results.
type HybridEmbedder struct {
	dense      DenseProvider
	sparse     SparseProvider
	batchSize  int
	batchDelay time.Duration
}

// HybridOption configures a HybridEmbedder.
type HybridOption func(*HybridEmbedder)

// WithBatchSize sets the chunk batch size.
func WithBatchSize(n int) HybridOption {
	return func(e *HybridEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between chunk batches.
func WithBatchDelay(d time.Duration) HybridOption {
	return func(e *HybridEmbedder) {
		if d >= 0 {
			e.batchDelay = d
		}
	}
}

// NewHybridEmbedder creates a hybrid embedder over the given providers.
func NewHybridEmbedder(dense DenseProvider, sparse SparseProvider, opts ...HybridOption) *HybridEmbedder {
	e := &HybridEmbedder{
		dense:      dense,
		sparse:     sparse,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// EmbedHybrid issues the dense and sparse requests concurrently and merges
// the results. A nil metadata map becomes an empty one.
func (e *HybridEmbedder) EmbedHybrid(ctx context.Context, text string, metadata map[string]string) (HybridEmbedding, error) {
	var dense DenseEmbedding
	var sparse SparseEmbedding

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = e.dense.EmbedDense(gctx, text)
		return err
	})
	g.Go(func() error {
		var err error
		sparse, err = e.sparse.EmbedSparse(gctx, text)
		return err
	})
	if err := g.Wait(); err != nil {
		return HybridEmbedding{}, err
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	return HybridEmbedding{
		Dense:    dense,
		Sparse:   sparse,
		Text:     text,
		Metadata: metadata,
	}, nil
}

// EmbedHybridBatch embeds multiple texts with the same concurrency pattern at
// batch granularity. Items beyond the end of metadata get an empty map.
func (e *HybridEmbedder) EmbedHybridBatch(ctx context.Context, texts []string, metadata []map[string]string) ([]HybridEmbedding, error) {
	if len(texts) == 0 {
		return []HybridEmbedding{}, nil
	}

	var dense []DenseEmbedding
	var sparse []SparseEmbedding

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = e.dense.EmbedDenseBatch(gctx, texts)
		return err
	})
	g.Go(func() error {
		var err error
		sparse, err = e.sparse.EmbedSparseBatch(gctx, texts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings := make([]HybridEmbedding, len(texts))
	for i, text := range texts {
		meta := map[string]string{}
		if i < len(metadata) && metadata[i] != nil {
			meta = metadata[i]
		}
		embeddings[i] = HybridEmbedding{
			Dense:    dense[i],
			Sparse:   sparse[i],
			Text:     text,
			Metadata: meta,
		}
	}

	return embeddings, nil
}

// EmbedQuery embeds a query string for retrieval.
func (e *HybridEmbedder) EmbedQuery(ctx context.Context, query string) (HybridEmbedding, error) {
	return e.EmbedHybrid(ctx, query, nil)
}

// EmbedChunks partitions chunks into fixed-size batches, embeds each batch,
// and pauses between batches. A failure in any batch aborts the whole
// operation with the batch's starting index; no partial result is returned.
func (e *HybridEmbedder) EmbedChunks(ctx context.Context, chunks []chunking.Chunk) (*Batch, error) {
	result := &Batch{Embeddings: make([]HybridEmbedding, 0, len(chunks))}

	for start := 0; start < len(chunks); start += e.batchSize {
		end := start + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		metadata := make([]map[string]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
			metadata[i] = MetadataMap(chunk.Metadata)
		}

		embeddings, err := e.EmbedHybridBatch(ctx, texts, metadata)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk batch starting at index %d: %w", start, err)
		}
		result.Embeddings = append(result.Embeddings, embeddings...)

		for _, text := range texts {
			result.TotalTokens += estimateTokens(text)
		}

		if end < len(chunks) && e.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	return result, nil
}

// MetadataMap flattens chunk metadata into the string map stored alongside
// vectors.
func MetadataMap(m chunking.ChunkMetadata) map[string]string {
	return map[string]string{
		"documentName":   m.DocumentName,
		"pageNumber":     strconv.Itoa(m.PageNumber),
		"sectionHeading": m.SectionHeading,
		"chunkIndex":     strconv.Itoa(m.ChunkIndex),
	}
}

// estimateTokens approximates token count as ceil(len/4), a cheap proxy used
// only for usage reporting.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
