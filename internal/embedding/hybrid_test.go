package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexrag/lexrag/internal/chunking"
)

// fakeDense embeds each text as a single value derived from its length and
// records batch sizes.
type fakeDense struct {
	batchSizes []int
	failAfter  int // fail on call number failAfter (1-based), 0 disables
	calls      int
}

func (f *fakeDense) EmbedDense(ctx context.Context, text string) (DenseEmbedding, error) {
	return DenseEmbedding{Values: []float32{float32(len(text))}, Dimension: 1}, nil
}

func (f *fakeDense) EmbedDenseBatch(ctx context.Context, texts []string) ([]DenseEmbedding, error) {
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, errors.New("rate limited")
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([]DenseEmbedding, len(texts))
	for i, text := range texts {
		out[i] = DenseEmbedding{Values: []float32{float32(len(text))}, Dimension: 1}
	}
	return out, nil
}

type fakeSparse struct{}

func (fakeSparse) EmbedSparse(ctx context.Context, text string) (SparseEmbedding, error) {
	return SparseEmbedding{Indices: []uint32{0}, Values: []float32{1}}, nil
}

func (fakeSparse) EmbedSparseBatch(ctx context.Context, texts []string) ([]SparseEmbedding, error) {
	out := make([]SparseEmbedding, len(texts))
	for i := range texts {
		out[i] = SparseEmbedding{Indices: []uint32{uint32(i)}, Values: []float32{1}}
	}
	return out, nil
}

func TestEmbedHybrid_MergesProviders(t *testing.T) {
	embedder := NewHybridEmbedder(&fakeDense{}, fakeSparse{})

	emb, err := embedder.EmbedHybrid(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", emb.Text)
	assert.Equal(t, []float32{5}, emb.Dense.Values)
	assert.NotEmpty(t, emb.Sparse.Indices)
	require.NotNil(t, emb.Metadata)
	assert.Empty(t, emb.Metadata)
}

func TestEmbedHybridBatch_OrderAndMetadata(t *testing.T) {
	embedder := NewHybridEmbedder(&fakeDense{}, fakeSparse{})

	texts := []string{"a", "bb", "ccc"}
	metadata := []map[string]string{{"documentName": "x.pdf"}} // shorter than texts

	embeddings, err := embedder.EmbedHybridBatch(context.Background(), texts, metadata)
	require.NoError(t, err)
	require.Len(t, embeddings, 3)

	for i, emb := range embeddings {
		assert.Equal(t, texts[i], emb.Text)
		assert.Equal(t, []float32{float32(len(texts[i]))}, emb.Dense.Values)
	}

	assert.Equal(t, "x.pdf", embeddings[0].Metadata["documentName"])
	require.NotNil(t, embeddings[1].Metadata)
	assert.Empty(t, embeddings[1].Metadata)
}

func TestEmbedHybridBatch_Empty(t *testing.T) {
	embedder := NewHybridEmbedder(&fakeDense{}, fakeSparse{})

	embeddings, err := embedder.EmbedHybridBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestEmbedChunks_Batching(t *testing.T) {
	dense := &fakeDense{}
	embedder := NewHybridEmbedder(dense, fakeSparse{},
		WithBatchSize(2),
		WithBatchDelay(0),
	)

	chunks := make([]chunking.Chunk, 5)
	for i := range chunks {
		chunks[i] = chunking.Chunk{
			Text: fmt.Sprintf("chunk number %d", i),
			Metadata: chunking.ChunkMetadata{
				DocumentName: "doc.pdf",
				PageNumber:   1,
				ChunkIndex:   i,
			},
		}
	}

	batch, err := embedder.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, dense.batchSizes)
	require.Len(t, batch.Embeddings, 5)

	wantTokens := 0
	for i, emb := range batch.Embeddings {
		assert.Equal(t, chunks[i].Text, emb.Text)
		assert.Equal(t, "doc.pdf", emb.Metadata["documentName"])
		assert.Equal(t, fmt.Sprintf("%d", i), emb.Metadata["chunkIndex"])
		wantTokens += (len(chunks[i].Text) + 3) / 4
	}
	assert.Equal(t, wantTokens, batch.TotalTokens)
}

func TestEmbedChunks_FailureReportsBatchStart(t *testing.T) {
	dense := &fakeDense{failAfter: 2}
	embedder := NewHybridEmbedder(dense, fakeSparse{},
		WithBatchSize(2),
		WithBatchDelay(0),
	)

	chunks := make([]chunking.Chunk, 5)
	for i := range chunks {
		chunks[i] = chunking.Chunk{Text: "text"}
	}

	_, err := embedder.EmbedChunks(context.Background(), chunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting at index 2")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEmbedQuery(t *testing.T) {
	embedder := NewHybridEmbedder(&fakeDense{}, fakeSparse{})

	emb, err := embedder.EmbedQuery(context.Background(), "what is clause 7?")
	require.NoError(t, err)
	assert.Equal(t, "what is clause 7?", emb.Text)
	assert.NotEmpty(t, emb.Dense.Values)
	assert.NotEmpty(t, emb.Sparse.Indices)
}

func TestMetadataMap(t *testing.T) {
	m := MetadataMap(chunking.ChunkMetadata{
		DocumentName:   "lease.pdf",
		PageNumber:     12,
		SectionHeading: "ARTICLE IV",
		ChunkIndex:     3,
	})

	assert.Equal(t, map[string]string{
		"documentName":   "lease.pdf",
		"pageNumber":     "12",
		"sectionHeading": "ARTICLE IV",
		"chunkIndex":     "3",
	}, m)
}
