package upload

import (
	"context"
	"sync"

	"github.com/lectern-ai/lectern/internal/core"
)

// SessionStore holds in-flight upload sessions keyed by id. The manager only
// talks to this interface so the map can later be swapped for Redis or
// similar without touching the upload rules.
type SessionStore interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]*Session, error)
}

// Ensure MemoryStore implements the interface.
var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore is the process-local SessionStore. Sessions die with the
// process; a partially uploaded file is simply re-sent.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess)
	}
	return result, nil
}
