package state

import (
	"context"
	"sync"
)

// MemoryStore is the process-local state backend. State does not survive
// a restart; use the relational backend when durability matters.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string]*Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string]*Turn)}
}

func (s *MemoryStore) Get(ctx context.Context, responseID string) (*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turn, ok := s.turns[responseID]
	if !ok {
		return nil, ErrNotFound
	}
	return turn, nil
}

func (s *MemoryStore) Put(ctx context.Context, responseID string, turn *Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[responseID] = turn
	return nil
}

func (s *MemoryStore) Combine(ctx context.Context, previousResponseID string, newItems []interface{}) ([]interface{}, error) {
	previous, err := s.Get(ctx, previousResponseID)
	if err != nil {
		return nil, err
	}
	return combineTurn(previous, newItems), nil
}
