// Package service orchestrates the ingestion and query pipelines over the
// chunking, embedding, storage, search, and answer layers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lexrag/lexrag/internal/chunking"
	"github.com/lexrag/lexrag/internal/embedding"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// ChunkEmbedder is the ingestion-side embedding dependency.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []chunking.Chunk) (*embedding.Batch, error)
}

// DocumentService handles document upload, listing, and deletion.
type DocumentService struct {
	chunker  *chunking.Chunker
	embedder ChunkEmbedder
	store    vectorstore.Store
	docRepo  repository.DocumentRepository
	index    string
	logger   *slog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	chunker *chunking.Chunker,
	embedder ChunkEmbedder,
	store vectorstore.Store,
	docRepo repository.DocumentRepository,
	index string,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		docRepo:  docRepo,
		index:    index,
		logger:   logger,
	}
}

// UploadPDF runs the full ingestion pipeline for one PDF: extract and chunk,
// embed, upsert into the user's namespace, then record metadata. The metadata
// row is written last so a failed ingestion never produces a listed document
// without vectors.
func (s *DocumentService) UploadPDF(ctx context.Context, userID, path, documentName string, fileSize int64) (*repository.Document, error) {
	start := time.Now()

	chunks, err := s.chunker.ProcessPDF(path, documentName)
	if err != nil {
		return nil, fmt.Errorf("processing PDF: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %q contains no extractable text", documentName)
	}

	pageCount := 0
	for _, chunk := range chunks {
		if chunk.Metadata.PageNumber > pageCount {
			pageCount = chunk.Metadata.PageNumber
		}
	}

	batch, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	records := make([]vectorstore.Record, len(batch.Embeddings))
	for i, emb := range batch.Embeddings {
		chunk := chunks[i]
		metadata := embedding.MetadataMap(chunk.Metadata)
		metadata["userId"] = userID

		records[i] = vectorstore.Record{
			ID: fmt.Sprintf("%s:%d:%d", chunk.Metadata.DocumentName,
				chunk.Metadata.PageNumber, chunk.Metadata.ChunkIndex),
			Dense: emb.Dense.Values,
			Sparse: &vectorstore.SparseVector{
				Indices: emb.Sparse.Indices,
				Values:  emb.Sparse.Values,
			},
			Text:     emb.Text,
			Metadata: metadata,
		}
	}

	dimension := batch.Embeddings[0].Dense.Dimension
	if err := s.store.EnsureNamespace(ctx, s.index, userID, dimension); err != nil {
		return nil, fmt.Errorf("ensuring namespace: %w", err)
	}

	if err := s.store.Upsert(ctx, s.index, userID, records); err != nil {
		return nil, fmt.Errorf("upserting vectors: %w", err)
	}

	doc := &repository.Document{
		ID:           uuid.New(),
		UserID:       userID,
		DocumentName: documentName,
		PageCount:    pageCount,
		ChunkCount:   len(chunks),
		FileSize:     fileSize,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		// Vectors are already stored; the record failure leaves them
		// orphaned until the document is re-uploaded or deleted.
		s.logger.Error("document metadata write failed after vector upsert",
			"namespace", userID,
			"document", documentName,
			"chunks", len(chunks),
			"error", err)
		return nil, fmt.Errorf("recording document metadata: %w", err)
	}

	s.logger.Info("document ingested",
		"document", documentName,
		"pages", pageCount,
		"chunks", len(chunks),
		"tokens", batch.TotalTokens,
		"duration", time.Since(start))

	return doc, nil
}

// ListDocuments returns the user's document metadata, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]*repository.Document, error) {
	docs, err := s.docRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if docs == nil {
		docs = []*repository.Document{}
	}
	return docs, nil
}

// DeleteDocument removes a document's vectors and then its metadata record.
// Vectors go first so a partial failure cannot leave a listed document whose
// chunks are gone.
func (s *DocumentService) DeleteDocument(ctx context.Context, userID, documentName string) error {
	if _, err := s.docRepo.GetByName(ctx, userID, documentName); err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, s.index, userID, documentName); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	if err := s.docRepo.Delete(ctx, userID, documentName); err != nil {
		return fmt.Errorf("deleting document metadata: %w", err)
	}

	s.logger.Info("document deleted", "document", documentName, "namespace", userID)
	return nil
}
