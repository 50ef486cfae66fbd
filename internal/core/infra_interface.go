package core

import (
	"context"

	"github.com/lectern-ai/lectern/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// InsertDocumentChunks persists all chunks in one transaction and reports
	// how many rows were written.
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error)

	// LexicalRank and SemanticRank return chunks best-first for one ranking
	// signal each. titleFilter narrows the corpus before ranking; "" means all
	// documents.
	LexicalRank(ctx context.Context, query string, titleFilter string, limit int) ([]models.RetrievedChunk, error)
	SemanticRank(ctx context.Context, queryVec []float32, titleFilter string, limit int) ([]models.RetrievedChunk, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
