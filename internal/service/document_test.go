package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexrag/lexrag/internal/chunking"
	"github.com/lexrag/lexrag/internal/embedding"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

type fakeSource struct {
	doc chunking.RawDocument
	err error
}

func (s fakeSource) ExtractRawText(path string) (chunking.RawDocument, error) {
	return s.doc, s.err
}

// runeTokenizer maps each rune to one token so chunk counts are predictable.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) EmbedChunks(ctx context.Context, chunks []chunking.Chunk) (*embedding.Batch, error) {
	if f.err != nil {
		return nil, f.err
	}
	batch := &embedding.Batch{}
	for _, chunk := range chunks {
		batch.Embeddings = append(batch.Embeddings, embedding.HybridEmbedding{
			Dense:    embedding.DenseEmbedding{Values: []float32{1, 2, 3}, Dimension: 3},
			Sparse:   embedding.SparseEmbedding{Indices: []uint32{1}, Values: []float32{0.5}},
			Text:     chunk.Text,
			Metadata: embedding.MetadataMap(chunk.Metadata),
		})
		batch.TotalTokens += (len(chunk.Text) + 3) / 4
	}
	return batch, nil
}

type fakeStore struct {
	ensuredNamespace string
	ensuredDimension int
	upserted         []vectorstore.Record
	upsertNamespace  string
	deletedDocument  string
	upsertErr        error
	matches          []vectorstore.Match
	gotQueryTopK     int
}

func (f *fakeStore) EnsureNamespace(ctx context.Context, index, namespace string, dimension int) error {
	f.ensuredNamespace = namespace
	f.ensuredDimension = dimension
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, index, namespace string, records []vectorstore.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertNamespace = namespace
	f.upserted = records
	return nil
}

func (f *fakeStore) Query(ctx context.Context, index, namespace string, dense []float32, sparse *vectorstore.SparseVector, topK int) ([]vectorstore.Match, error) {
	f.gotQueryTopK = topK
	return f.matches, nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, index, namespace, documentName string) error {
	f.deletedDocument = documentName
	return nil
}

func (f *fakeStore) DeleteNamespace(ctx context.Context, index, namespace string) error {
	return nil
}

type fakeRepo struct {
	created   *repository.Document
	docs      []*repository.Document
	createErr error
	deleted   bool
}

func (f *fakeRepo) Create(ctx context.Context, doc *repository.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = doc
	return nil
}

func (f *fakeRepo) GetByName(ctx context.Context, userID, documentName string) (*repository.Document, error) {
	for _, doc := range f.docs {
		if doc.UserID == userID && doc.DocumentName == documentName {
			return doc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string) ([]*repository.Document, error) {
	return f.docs, nil
}

func (f *fakeRepo) Delete(ctx context.Context, userID, documentName string) error {
	f.deleted = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newUploadFixture(source fakeSource) (*DocumentService, *fakeStore, *fakeRepo) {
	chunker := chunking.NewChunker(source, runeTokenizer{}, 50, 10)
	store := &fakeStore{}
	repo := &fakeRepo{}
	svc := NewDocumentService(chunker, fakeEmbedder{}, store, repo, "law", testLogger())
	return svc, store, repo
}

func TestUploadPDF(t *testing.T) {
	source := fakeSource{doc: chunking.RawDocument{
		Text:      "DEFINITIONS\nfirst page content here\fsecond page content follows on",
		PageCount: 2,
	}}
	svc, store, repo := newUploadFixture(source)

	doc, err := svc.UploadPDF(context.Background(), "user-1", "/tmp/x.pdf", "contract.pdf", 1234)
	require.NoError(t, err)

	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, "contract.pdf", doc.DocumentName)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, int64(1234), doc.FileSize)
	assert.Equal(t, len(store.upserted), doc.ChunkCount)
	assert.False(t, doc.UploadedAt.IsZero())

	// The user ID is the namespace.
	assert.Equal(t, "user-1", store.ensuredNamespace)
	assert.Equal(t, "user-1", store.upsertNamespace)
	assert.Equal(t, 3, store.ensuredDimension)

	require.NotEmpty(t, store.upserted)
	first := store.upserted[0]
	assert.Equal(t, "contract.pdf:1:0", first.ID)
	assert.Equal(t, "contract.pdf", first.Metadata["documentName"])
	assert.Equal(t, "user-1", first.Metadata["userId"])
	require.NotNil(t, first.Sparse)

	require.NotNil(t, repo.created)
	assert.Equal(t, doc.ID, repo.created.ID)
}

func TestUploadPDF_EmptyDocument(t *testing.T) {
	source := fakeSource{doc: chunking.RawDocument{Text: "   ", PageCount: 1}}
	svc, store, _ := newUploadFixture(source)

	_, err := svc.UploadPDF(context.Background(), "user-1", "/tmp/x.pdf", "blank.pdf", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractable text")
	assert.Empty(t, store.upserted)
}

func TestUploadPDF_ExtractionError(t *testing.T) {
	source := fakeSource{err: errors.New("encrypted file")}
	svc, _, _ := newUploadFixture(source)

	_, err := svc.UploadPDF(context.Background(), "user-1", "/tmp/x.pdf", "locked.pdf", 10)
	require.ErrorIs(t, err, chunking.ErrExtraction)
}

func TestUploadPDF_MetadataWriteFailure(t *testing.T) {
	source := fakeSource{doc: chunking.RawDocument{Text: "some page text", PageCount: 1}}
	svc, store, repo := newUploadFixture(source)
	repo.createErr = errors.New("unique constraint violation")

	_, err := svc.UploadPDF(context.Background(), "user-1", "/tmp/x.pdf", "contract.pdf", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording document metadata")
	// Vectors were already written before the metadata failure.
	assert.NotEmpty(t, store.upserted)
}

func TestDeleteDocument(t *testing.T) {
	source := fakeSource{}
	svc, store, repo := newUploadFixture(source)
	repo.docs = []*repository.Document{
		{UserID: "user-1", DocumentName: "contract.pdf"},
	}

	err := svc.DeleteDocument(context.Background(), "user-1", "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", store.deletedDocument)
	assert.True(t, repo.deleted)
}

func TestDeleteDocument_NotFound(t *testing.T) {
	svc, store, _ := newUploadFixture(fakeSource{})

	err := svc.DeleteDocument(context.Background(), "user-1", "missing.pdf")
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, store.deletedDocument)
}

func TestListDocuments_NeverNil(t *testing.T) {
	svc, _, _ := newUploadFixture(fakeSource{})

	docs, err := svc.ListDocuments(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, docs)
	assert.Empty(t, docs)
}
