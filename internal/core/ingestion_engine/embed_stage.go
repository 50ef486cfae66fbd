package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core/chunker"
)

// embedPieces turns every piece into a vector, batching provider calls to
// stay under request limits. The result is index-aligned with pieces; a
// provider returning the wrong number of vectors for a batch fails the stage.
func (i *DocumentIngestor) embedPieces(ctx context.Context, pieces []chunker.Piece) ([][]float32, error) {
	batchSize := i.cfg.EmbedBatchSize
	if batchSize < 1 {
		batchSize = len(pieces)
	}

	vecs := make([][]float32, 0, len(pieces))
	for lo := 0; lo < len(pieces); lo += batchSize {
		hi := lo + batchSize
		if hi > len(pieces) {
			hi = len(pieces)
		}

		texts := make([]string, hi-lo)
		for k := lo; k < hi; k++ {
			texts[k-lo] = pieces[k].Text
		}

		batch, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", lo, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(batch), len(texts))
		}
		for k, vec := range batch {
			if i.cfg.EmbedDim > 0 && len(vec) != i.cfg.EmbedDim {
				return nil, fmt.Errorf("embed dim mismatch at %d: got %d want %d", lo+k, len(vec), i.cfg.EmbedDim)
			}
		}
		vecs = append(vecs, batch...)

		log.Debug().Int("from", lo).Int("count", len(texts)).Msg("embedded chunk batch")
	}
	return vecs, nil
}
