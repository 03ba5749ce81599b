// Package memory provides in-process implementations of the storage
// ports: a state store and a registry. Both are safe for concurrent use
// and are the default backends for single-process simulations and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Store implements ports.StateStore in memory.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.NegotiationState
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.NegotiationState),
	}
}

// Save persists a deep copy of the state, mirroring the isolation a
// serializing backend would give.
func (s *Store) Save(ctx context.Context, key string, state *domain.NegotiationState) error {
	cp := state.Clone()
	cp.Incoming = nil // transport input never persists

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
	return nil
}

// Load retrieves a deep copy of the state so callers cannot mutate the
// stored record through the returned pointer.
func (s *Store) Load(ctx context.Context, key string) (*domain.NegotiationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return state.Clone(), nil
}

// Delete removes the record. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored keys.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}
