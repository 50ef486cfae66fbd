package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/internal/core"
)

type fakeTextSplitter struct {
	parts []string
	err   error
	seen  string
}

func (f *fakeTextSplitter) SplitText(text string) ([]string, error) {
	f.seen = text
	return f.parts, f.err
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func newTestSplitter(fake *fakeTextSplitter, tokenLimit int) *Splitter {
	return &Splitter{
		chunkSize:  100,
		overlap:    10,
		tokenLimit: tokenLimit,
		split:      fake,
		count:      wordCount,
	}
}

func TestNewSplitter_RejectsOverlapNotBelowChunkSize(t *testing.T) {
	for _, tc := range []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSplitter(tc.size, tc.overlap, 8000)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidConfig))
		})
	}
}

func TestSplitter_Split_EmptyStreamYieldsNoPieces(t *testing.T) {
	fake := &fakeTextSplitter{parts: []string{"should not be called"}}
	s := newTestSplitter(fake, 8000)

	pieces, err := s.Split([]string{"", "   ", "\n\t"})

	require.NoError(t, err)
	assert.Empty(t, pieces)
	assert.Empty(t, fake.seen, "blank pages must not reach the splitter")
}

func TestSplitter_Split_JoinsPagesIntoOneStream(t *testing.T) {
	fake := &fakeTextSplitter{parts: []string{"first half", "second half"}}
	s := newTestSplitter(fake, 8000)

	_, err := s.Split([]string{"page one text", "", "page two text"})

	require.NoError(t, err)
	assert.Equal(t, "page one text\npage two text", fake.seen)
}

func TestSplitter_Split_AssignsDensePositions(t *testing.T) {
	fake := &fakeTextSplitter{parts: []string{"alpha beta", "gamma", "delta epsilon zeta"}}
	s := newTestSplitter(fake, 8000)

	pieces, err := s.Split([]string{"some text"})

	require.NoError(t, err)
	require.Len(t, pieces, 3)
	for i, p := range pieces {
		assert.Equal(t, i, p.Position)
	}
	assert.Equal(t, 2, pieces[0].Tokens)
	assert.Equal(t, 1, pieces[1].Tokens)
	assert.Equal(t, 3, pieces[2].Tokens)
}

func TestSplitter_Split_FlagsPiecesOverTokenLimit(t *testing.T) {
	fake := &fakeTextSplitter{parts: []string{"small", "one two three four five"}}
	s := newTestSplitter(fake, 4)

	pieces, err := s.Split([]string{"some text"})

	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.False(t, pieces[0].OverLimit)
	assert.True(t, pieces[1].OverLimit, "oversized pieces are flagged, not dropped")
	assert.Equal(t, "one two three four five", pieces[1].Text)
}

func TestSplitter_Split_PropagatesSplitterError(t *testing.T) {
	fake := &fakeTextSplitter{err: errors.New("encoder exploded")}
	s := newTestSplitter(fake, 8000)

	_, err := s.Split([]string{"some text"})

	require.Error(t, err)
}
