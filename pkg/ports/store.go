package ports

import (
	"context"

	"github.com/aretw0/balupi/pkg/domain"
)

// StateStore defines the interface for persisting the availability record.
// Writes must be durable before Save returns.
type StateStore interface {
	// Save persists the record under key.
	Save(ctx context.Context, key string, record domain.StateRecord) error

	// Load retrieves the record stored under key.
	// Returns domain.ErrStateNotFound if nothing was written yet.
	Load(ctx context.Context, key string) (domain.StateRecord, error)

	// Delete removes the record stored under key.
	Delete(ctx context.Context, key string) error
}
