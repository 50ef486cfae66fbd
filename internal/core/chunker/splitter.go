package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/lectern-ai/lectern/internal/core"
)

const encodingName = "cl100k_base"

// Piece is one chunk of the concatenated document stream.
type Piece struct {
	Position  int
	Text      string
	Tokens    int
	OverLimit bool
}

// textSplitter is the seam over the langchaingo token splitter so the
// surrounding rules stay testable without the BPE dictionaries.
type textSplitter interface {
	SplitText(text string) ([]string, error)
}

type tokenCounter func(text string) int

type Splitter struct {
	chunkSize  int
	overlap    int
	tokenLimit int
	split      textSplitter
	count      tokenCounter
}

// NewSplitter builds a token-window splitter over the cl100k_base encoding.
// overlap must stay below chunkSize or every window would re-emit its
// predecessor and the stream would never advance.
func NewSplitter(chunkSize, overlap, tokenLimit int) (*Splitter, error) {
	if chunkSize < 1 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", core.ErrInvalidConfig, chunkSize, overlap)
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}

	ts := textsplitter.NewTokenSplitter(
		textsplitter.WithEncodingName(encodingName),
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
	)

	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		tokenLimit: tokenLimit,
		split:      ts,
		count: func(text string) int {
			return len(enc.Encode(text, nil, nil))
		},
	}, nil
}

// Split joins the page texts into one stream and cuts it into token windows.
// Pieces above the embedding token limit are flagged, not dropped.
func (s *Splitter) Split(pages []string) ([]Piece, error) {
	stream := joinPages(pages)
	if stream == "" {
		return nil, nil
	}

	parts, err := s.split.SplitText(stream)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	pieces := make([]Piece, 0, len(parts))
	for i, text := range parts {
		p := Piece{Position: i, Text: text, Tokens: s.count(text)}
		if s.tokenLimit > 0 && p.Tokens > s.tokenLimit {
			p.OverLimit = true
			log.Warn().
				Int("position", i).
				Int("tokens", p.Tokens).
				Int("limit", s.tokenLimit).
				Msg("chunk exceeds embedding token limit")
		}
		pieces = append(pieces, p)
	}
	return pieces, nil
}

// joinPages normalizes page texts into a single stream. Page boundaries never
// force chunk boundaries.
func joinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
