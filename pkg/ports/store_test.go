package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
)

// MockStore is an in-memory implementation of StateStore for testing purposes.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.StateRecord
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.StateRecord),
	}
}

func (m *MockStore) Save(ctx context.Context, key string, record domain.StateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = record
	return nil
}

func (m *MockStore) Load(ctx context.Context, key string) (domain.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.data[key]
	if !ok {
		return domain.StateRecord{}, domain.ErrStateNotFound
	}
	return record, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestMockStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, NewMockStore())
}
