package ingestion_engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/chunker"
	"github.com/lectern-ai/lectern/internal/models"
)

const pdfContentType = "application/pdf"

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, extractor core.DocumentExtractor, splitter pieceSplitter, cfg *IngestConfig) *DocumentIngestor {
	return &DocumentIngestor{
		db: db, obj: obj, embedder: emb, extractor: extractor, splitter: splitter, cfg: cfg,
	}
}

// IngestPDF runs the stages in order: extract, chunk, embed, upload the blob,
// create the document row, insert the chunks. The row goes in before the
// chunks so every stored chunk always has a parent. Failures after the blob
// upload roll back whatever was already written; a failed ingestion leaves
// nothing visible.
//
// A document that yields no text is still stored, it just ends up with zero
// chunks.
func (i *DocumentIngestor) IngestPDF(ctx context.Context, raw []byte, title, originalName, license string) (*Result, error) {
	start := time.Now()
	if license == "" {
		license = "unknown"
	}

	var pages []models.PageText
	err := i.runStage(ctx, "extract", func(sctx context.Context) error {
		var err error
		pages, err = i.extractor.Extract(sctx, raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	var pieces []chunker.Piece
	err = i.runStage(ctx, "chunk", func(context.Context) error {
		texts := make([]string, len(pages))
		for k, p := range pages {
			texts[k] = p.Text
		}
		var err error
		pieces, err = i.splitter.Split(texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 {
		log.Warn().Str("title", title).Msg("document yielded no text, storing without chunks")
	}

	var vecs [][]float32
	if len(pieces) > 0 {
		err = i.runStage(ctx, "embed", func(sctx context.Context) error {
			var err error
			vecs, err = i.embedPieces(sctx, pieces)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	key := blobKey(i.cfg.BlobFolder, title)
	var fileURL string
	err = i.runStage(ctx, "upload", func(sctx context.Context) error {
		var err error
		fileURL, err = i.obj.UploadFile(sctx, i.cfg.Bucket, key, raw, pdfContentType)
		return err
	})
	if err != nil {
		return nil, err
	}

	doc := &models.Document{Title: title, StorageURL: fileURL, License: license}
	err = i.runStage(ctx, "metadata", func(sctx context.Context) error {
		return i.db.CreateDocument(sctx, doc)
	})
	if err != nil {
		i.deleteBlob(key)
		return nil, err
	}

	if len(pieces) > 0 {
		rows := make([]models.DocumentChunk, len(pieces))
		for k := range pieces {
			rows[k] = models.DocumentChunk{
				DocumentID:   doc.ID,
				Position:     pieces[k].Position,
				Text:         pieces[k].Text,
				Embedding:    vecs[k],
				OriginalName: originalName,
				DownloadURL:  fileURL,
			}
		}
		err = i.runStage(ctx, "chunks", func(sctx context.Context) error {
			n, err := i.db.InsertDocumentChunks(sctx, rows)
			if err != nil {
				return err
			}
			if n != len(rows) {
				return fmt.Errorf("%w: wrote %d of %d chunks", core.ErrChunkCountMismatch, n, len(rows))
			}
			return nil
		})
		if err != nil {
			i.rollback(doc.ID, key)
			return nil, err
		}
	}

	elapsed := time.Since(start)
	log.Info().
		Str("document_id", doc.ID).
		Str("title", title).
		Int("pages", len(pages)).
		Int("chunks", len(pieces)).
		Dur("elapsed", elapsed).
		Msg("document ingested")
	return &Result{Document: doc, ChunkCount: len(pieces), Elapsed: elapsed}, nil
}

// runStage runs one pipeline stage under its own deadline and wraps any
// failure with the stage name and how long it ran.
func (i *DocumentIngestor) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	sctx := ctx
	if i.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, i.cfg.StageTimeout)
		defer cancel()
	}

	stageStart := time.Now()
	if err := fn(sctx); err != nil {
		serr := &core.StageError{Stage: name, Elapsed: time.Since(stageStart), Err: err}
		log.Error().Err(err).Str("stage", name).Dur("elapsed", serr.Elapsed).Msg("ingestion stage failed")
		return serr
	}
	log.Debug().Str("stage", name).Dur("elapsed", time.Since(stageStart)).Msg("ingestion stage done")
	return nil
}

// rollback undoes a partially persisted document. The chunk rows follow the
// document row via the FK cascade.
func (i *DocumentIngestor) rollback(docID, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := i.db.DeleteDocument(ctx, docID); err != nil {
		log.Error().Err(err).Str("document_id", docID).Msg("rollback: document delete failed")
	}
	if err := i.obj.DeleteFile(ctx, i.cfg.Bucket, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rollback: blob delete failed")
	}
}

func (i *DocumentIngestor) deleteBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := i.obj.DeleteFile(ctx, i.cfg.Bucket, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rollback: blob delete failed")
	}
}

// blobKey builds the storage key for a document. The random suffix keeps
// re-uploads of the same title from overwriting each other.
// Example: uploaded_docs/operating_systems_3a9f41c2.pdf
func blobKey(folder, title string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := sanitizeName(title)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return fmt.Sprintf("%s_%s.pdf", name, suffix)
	}
	return fmt.Sprintf("%s/%s_%s.pdf", folder, name, suffix)
}

// sanitizeName reduces a user-supplied title to characters that are safe in
// an object key and in the URL built from it.
func sanitizeName(title string) string {
	title = strings.TrimSuffix(strings.TrimSpace(title), ".pdf")

	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
