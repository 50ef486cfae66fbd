package chat

import (
	"context"
	"sync"

	"github.com/lectern-ai/lectern/internal/models"
)

// Conversation holds one chat's persona and ordered history. Its mutex
// serializes queries within the conversation; different conversations proceed
// in parallel.
type Conversation struct {
	ID string

	mu    sync.Mutex
	mode  Mode
	turns []models.ChatTurn
}

// ConversationStore resolves conversations by id. The orchestrator only talks
// to this interface so process-local memory can later be swapped for a shared
// store.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, id string, defaultMode Mode) (*Conversation, error)
}

// Ensure MemoryStore implements the interface.
var _ ConversationStore = (*MemoryStore)(nil)

// MemoryStore is the process-local ConversationStore. History dies with the
// process.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*Conversation)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string, defaultMode Mode) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		return conv, nil
	}
	conv := &Conversation{ID: id, mode: defaultMode}
	s.conversations[id] = conv
	return conv, nil
}
