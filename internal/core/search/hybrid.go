package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/models"
)

// Options tune one hybrid search call.
type Options struct {
	TitleFilter    string
	MatchCount     int
	FullTextWeight float64
	SemanticWeight float64
	RRFK           int
}

// HybridRetriever combines the full-text and vector rankers into one ranked
// result list. The rankers live in the database; the fusion lives here.
type HybridRetriever struct {
	db core.DbClient
}

func NewHybridRetriever(db core.DbClient) *HybridRetriever {
	return &HybridRetriever{db: db}
}

// Search runs both rankers concurrently and fuses their output. Either ranker
// failing fails the whole search; a fabricated half-ranking would be worse
// than an error. No matches is a valid, empty result.
func (r *HybridRetriever) Search(ctx context.Context, query string, queryVec []float32, opts Options) ([]models.RetrievedChunk, error) {
	if opts.MatchCount < 1 {
		return nil, fmt.Errorf("%w: match count %d", core.ErrInvalidConfig, opts.MatchCount)
	}

	start := time.Now()
	var lexical, semantic []models.RetrievedChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = r.db.LexicalRank(gctx, query, opts.TitleFilter, opts.MatchCount)
		if err != nil {
			return fmt.Errorf("lexical rank: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		semantic, err = r.db.SemanticRank(gctx, queryVec, opts.TitleFilter, opts.MatchCount)
		if err != nil {
			return fmt.Errorf("semantic rank: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuse(lexical, semantic, opts.FullTextWeight, opts.SemanticWeight, opts.RRFK)
	if len(fused) > opts.MatchCount {
		fused = fused[:opts.MatchCount]
	}

	log.Debug().
		Int("lexical", len(lexical)).
		Int("semantic", len(semantic)).
		Int("fused", len(fused)).
		Str("title_filter", opts.TitleFilter).
		Dur("elapsed", time.Since(start)).
		Msg("hybrid search")
	return fused, nil
}

// fuse merges two ranked lists with weighted Reciprocal Rank Fusion. A chunk
// at 1-based rank r in a list with weight w contributes w/(k+r) to its total;
// absence from a list contributes nothing. Equal totals keep first-seen
// order, lexical list first.
func fuse(lexical, semantic []models.RetrievedChunk, lexWeight, semWeight float64, k int) []models.RetrievedChunk {
	scores := make(map[string]float64)
	byID := make(map[string]models.RetrievedChunk)
	var order []string

	accumulate := func(list []models.RetrievedChunk, weight float64) {
		for rank, chunk := range list {
			if _, ok := byID[chunk.ID]; !ok {
				byID[chunk.ID] = chunk
				order = append(order, chunk.ID)
			}
			scores[chunk.ID] += weight / float64(k+rank+1)
		}
	}
	accumulate(lexical, lexWeight)
	accumulate(semantic, semWeight)

	results := make([]models.RetrievedChunk, 0, len(order))
	for _, id := range order {
		chunk := byID[id]
		chunk.Score = scores[id]
		results = append(results, chunk)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
