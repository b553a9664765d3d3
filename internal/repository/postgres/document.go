package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lexrag/lexrag/internal/repository"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create creates a new document metadata record
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	query := `
		INSERT INTO documents (id, user_id, document_name, page_count, chunk_count, file_size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.UserID, doc.DocumentName,
		doc.PageCount, doc.ChunkCount, doc.FileSize, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByName retrieves a document by name for a user
func (r *DocumentRepo) GetByName(ctx context.Context, userID, documentName string) (*repository.Document, error) {
	query := `
		SELECT id, user_id, document_name, page_count, chunk_count, file_size, uploaded_at
		FROM documents
		WHERE user_id = $1 AND document_name = $2
	`
	var doc repository.Document
	err := r.db.Pool.QueryRow(ctx, query, userID, documentName).Scan(
		&doc.ID, &doc.UserID, &doc.DocumentName,
		&doc.PageCount, &doc.ChunkCount, &doc.FileSize, &doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByUser retrieves all documents for a user, newest first
func (r *DocumentRepo) ListByUser(ctx context.Context, userID string) ([]*repository.Document, error) {
	query := `
		SELECT id, user_id, document_name, page_count, chunk_count, file_size, uploaded_at
		FROM documents
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.DocumentName,
			&doc.PageCount, &doc.ChunkCount, &doc.FileSize, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}

// Delete deletes a document metadata record
func (r *DocumentRepo) Delete(ctx context.Context, userID, documentName string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM documents WHERE user_id = $1 AND document_name = $2`,
		userID, documentName)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure DocumentRepo implements the interface
var _ repository.DocumentRepository = (*DocumentRepo)(nil)
