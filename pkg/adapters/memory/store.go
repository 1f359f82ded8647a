package memory

import (
	"context"
	"sync"

	"github.com/aretw0/balupi/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use. Nothing survives a restart.
type Store struct {
	data map[string]domain.StateRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.StateRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, key string, record domain.StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = record
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, key string) (domain.StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[key]
	if !ok {
		return domain.StateRecord{}, domain.ErrStateNotFound
	}
	return record, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns the keys currently held.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
