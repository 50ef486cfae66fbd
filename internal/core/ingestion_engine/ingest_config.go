package ingestion_engine

import (
	"time"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/chunker"
)

// IngestConfig tunes the ingestion pipeline.
//
// Bucket:         object-storage bucket receiving the raw PDFs.
// BlobFolder:     key prefix inside the bucket (e.g., "uploaded_docs").
// EmbedBatchSize: how many chunks to embed in one provider call.
// EmbedDim:       expected embedding vector length; 0 accepts any.
// StageTimeout:   per-stage deadline; 0 disables it.
type IngestConfig struct {
	Bucket         string
	BlobFolder     string
	EmbedBatchSize int
	EmbedDim       int
	StageTimeout   time.Duration
}

// pieceSplitter is the slice of the chunker the pipeline needs.
type pieceSplitter interface {
	Split(pages []string) ([]chunker.Piece, error)
}

// DocumentIngestor runs the ingestion pipeline for one document at a time:
//
// db:        persistence for the document row and its chunks.
// obj:       object storage for the raw file.
// embedder:  embedding provider (Gemini).
// extractor: PDF text extraction with OCR fallback.
// splitter:  token-window chunker.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	splitter  pieceSplitter
	cfg       *IngestConfig
}
