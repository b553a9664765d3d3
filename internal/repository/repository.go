// Package repository defines the data access interfaces and domain types for
// document metadata.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Document is the metadata record for one uploaded document. Document names
// are unique per user.
type Document struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	DocumentName string    `json:"documentName"`
	PageCount    int       `json:"pageCount"`
	ChunkCount   int       `json:"chunkCount"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// DocumentRepository manages document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByName(ctx context.Context, userID, documentName string) (*Document, error)
	ListByUser(ctx context.Context, userID string) ([]*Document, error)
	Delete(ctx context.Context, userID, documentName string) error
}
