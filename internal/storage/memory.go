package storage

import (
	"context"
	"sync"

	"inboxpilot/internal/models"
)

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*models.DraftState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*models.DraftState),
	}
}

func (s *MemoryStore) Get(ctx context.Context, threadID string) (*models.DraftState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[threadID]
	if !exists {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *MemoryStore) Replace(ctx context.Context, state *models.DraftState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *state
	s.states[state.ThreadID] = &copied
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, threadID)
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
