package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		since := time.Date(2026, 3, 1, 12, 30, 0, 123000000, time.UTC)
		record := domain.StateRecord{State: domain.StateOnline, Since: since}

		err := store.Save(ctx, key, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.State, loaded.State)
		assert.True(t, record.Since.Equal(loaded.Since), "since should round-trip, got %v", loaded.Since)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.StateRecord{State: domain.StateOnline, Since: time.Now()}))
		require.NoError(t, store.Save(ctx, key, domain.StateRecord{State: domain.StateOffline, Since: time.Now()}))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.StateOffline, loaded.State)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, key, domain.StateRecord{State: domain.StateBooting, Since: time.Now()})
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrStateNotFound, "Load after Delete should return ErrStateNotFound")
	})

	t.Run("Delete Non-Existent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-written-"+key))
	})
}
