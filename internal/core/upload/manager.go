package upload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core"
)

const pdfMimeType = "application/pdf"

// Session tracks one resumable chunked upload. Parts live as chunk_<index>
// files under Dir until finalize stitches them together.
//
// The per-session mutex serializes every mutation, so a sweep can never tear
// down a session mid-finalize.
type Session struct {
	ID          string
	FileName    string
	MimeType    string
	TotalChunks int
	TotalSize   int64
	Dir         string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RequestID   string

	mu        sync.Mutex
	received  map[int]string // chunk index -> part file path
	finalized bool
	removed   bool
}

// Progress reports how far along a session is after accepting a part.
type Progress struct {
	Received int
	Total    int
	Complete bool
}

// Manager owns the chunked upload lifecycle: initiate, accept parts in any
// order, reassemble on finalize, and expire abandoned sessions.
type Manager struct {
	store SessionStore
	ttl   time.Duration
}

func NewManager(store SessionStore, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Initiate registers a new session and allocates its scratch directory.
func (m *Manager) Initiate(ctx context.Context, fileName string, totalChunks int, totalSize int64, mimeType string) (*Session, error) {
	if mimeType != pdfMimeType {
		return nil, fmt.Errorf("%w: got %q", core.ErrUnsupportedMedia, mimeType)
	}
	if totalChunks < 1 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidChunkCount, totalChunks)
	}

	dir, err := os.MkdirTemp("", "lectern-upload-")
	if err != nil {
		return nil, fmt.Errorf("allocate scratch dir: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:          uuid.NewString(),
		FileName:    fileName,
		MimeType:    mimeType,
		TotalChunks: totalChunks,
		TotalSize:   totalSize,
		Dir:         dir,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
		RequestID:   uuid.NewString()[:8],
		received:    make(map[int]string),
	}
	if err := m.store.Put(ctx, s); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	log.Info().
		Str("request_id", s.RequestID).
		Str("upload_id", s.ID).
		Str("file_name", fileName).
		Int("total_chunks", totalChunks).
		Int64("total_size", totalSize).
		Time("expires_at", s.ExpiresAt).
		Msg("upload session initiated")
	return s, nil
}

// PutPart stores one chunk. A re-sent index overwrites the previous part
// without inflating the received count, so retries stay idempotent.
func (m *Manager) PutPart(ctx context.Context, id string, index int, data []byte) (Progress, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return Progress{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return Progress{}, core.ErrSessionNotFound
	}
	if s.finalized {
		return Progress{}, core.ErrAlreadyFinalized
	}
	if index < 0 || index >= s.TotalChunks {
		return Progress{}, fmt.Errorf("%w: index %d with %d total chunks", core.ErrInvalidChunkIndex, index, s.TotalChunks)
	}

	path := filepath.Join(s.Dir, fmt.Sprintf("chunk_%d", index))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Progress{}, fmt.Errorf("write part %d: %w", index, err)
	}
	s.received[index] = path

	p := Progress{Received: len(s.received), Total: s.TotalChunks, Complete: len(s.received) == s.TotalChunks}
	log.Debug().
		Str("request_id", s.RequestID).
		Str("upload_id", s.ID).
		Int("chunk_index", index).
		Int("received", p.Received).
		Int("total", p.Total).
		Msg("chunk stored")
	return p, nil
}

// Finalize reassembles the original file strictly in index order and returns
// it together with the session it came from. An incomplete session is left
// intact so missing parts can still arrive; once assembly starts, the scratch
// directory goes away on success and failure alike.
func (m *Manager) Finalize(ctx context.Context, id string) ([]byte, *Session, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return nil, nil, core.ErrSessionNotFound
	}
	if s.finalized {
		return nil, nil, core.ErrAlreadyFinalized
	}
	if len(s.received) != s.TotalChunks {
		return nil, nil, fmt.Errorf("%w: have %d of %d", core.ErrUploadIncomplete, len(s.received), s.TotalChunks)
	}

	s.finalized = true
	defer s.removeScratchLocked()

	var buf bytes.Buffer
	buf.Grow(int(s.TotalSize))
	for i := 0; i < s.TotalChunks; i++ {
		part, err := os.ReadFile(s.received[i])
		if err != nil {
			return nil, nil, fmt.Errorf("read part %d: %w", i, err)
		}
		buf.Write(part)
	}

	log.Info().
		Str("request_id", s.RequestID).
		Str("upload_id", s.ID).
		Str("file_name", s.FileName).
		Int("total_chunks", s.TotalChunks).
		Int("assembled_bytes", buf.Len()).
		Msg("upload finalized")
	return buf.Bytes(), s, nil
}

// Sweep purges every expired session and reports how many went away. Called
// by the reaper, safe to call by hand.
func (m *Manager) Sweep(ctx context.Context) int {
	sessions, err := m.store.All(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweep could not list sessions")
		return 0
	}

	now := time.Now()
	purged := 0
	for _, s := range sessions {
		if now.Before(s.ExpiresAt) {
			continue
		}
		if m.purge(ctx, s) {
			purged++
		}
	}
	if purged > 0 {
		log.Info().Int("purged", purged).Msg("expired upload sessions reaped")
	}
	return purged
}

// lookup resolves a live session. Expired sessions are purged on sight and
// reported exactly like unknown ones.
func (m *Manager) lookup(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !time.Now().Before(s.ExpiresAt) {
		m.purge(ctx, s)
		return nil, core.ErrSessionNotFound
	}
	return s, nil
}

// purge removes a session and its scratch dir. Blocks until any in-flight
// operation on the session releases its mutex.
func (m *Manager) purge(ctx context.Context, s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return false
	}
	s.removed = true
	s.removeScratchLocked()
	if err := m.store.Delete(ctx, s.ID); err != nil {
		log.Error().Str("upload_id", s.ID).Err(err).Msg("could not delete session from store")
	}
	return true
}

func (s *Session) removeScratchLocked() {
	if s.Dir == "" {
		return
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		log.Error().Str("upload_id", s.ID).Str("dir", s.Dir).Err(err).Msg("could not remove scratch dir")
		return
	}
	s.Dir = ""
}
