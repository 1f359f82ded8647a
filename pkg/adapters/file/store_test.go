package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/adapters/file"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunStateStoreContract(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	err := store.Save(context.Background(), "nas_state", domain.StateRecord{State: domain.StateOnline, Since: time.Now()})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "nas_state.json"))
	assert.NoError(t, err, "expected state file at <dir>/nas_state.json")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_Corrupt(t *testing.T) {
	cases := map[string]string{
		"garbage":       "{not json",
		"unknown state": `{"state":"hibernating","since":"2026-01-01T00:00:00Z"}`,
		"missing since": `{"state":"online"}`,
		"bad since":     `{"state":"online","since":"yesterday"}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "nas_state.json"), []byte(content), 0644))

			_, err := file.New(dir).Load(context.Background(), "nas_state")
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
}

func TestFileStore_EmptyKey(t *testing.T) {
	store := file.New(t.TempDir())
	assert.Error(t, store.Save(context.Background(), "", domain.StateRecord{}))
	_, err := store.Load(context.Background(), "")
	assert.Error(t, err)
}
