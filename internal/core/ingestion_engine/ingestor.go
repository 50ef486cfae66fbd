package ingestion_engine

import (
	"context"
	"time"

	"github.com/lectern-ai/lectern/internal/models"
)

// Ingestor takes a raw PDF through extraction, chunking, embedding and
// persistence in one call. The caller gets the stored document back once
// every piece of it is visible, or an error and no trace of it at all.
type Ingestor interface {
	IngestPDF(ctx context.Context, raw []byte, title, originalName, license string) (*Result, error)
}

// Result describes a completed ingestion.
type Result struct {
	Document   *models.Document
	ChunkCount int
	Elapsed    time.Duration
}
