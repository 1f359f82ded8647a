package file_test

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/balupi/pkg/adapters/file"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore_PutGet(t *testing.T) {
	store := file.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshot", "snapshot.json"))

	_, err := store.Get()
	assert.ErrorIs(t, err, ports.ErrNoSnapshot)
	_, ok := store.LastModified()
	assert.False(t, ok)

	first := []byte(`{"services":["smb"],"uptime":12}`)
	require.NoError(t, store.Put(first))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, first, got)

	_, ok = store.LastModified()
	assert.True(t, ok)
}

func TestSnapshotStore_Overwrite(t *testing.T) {
	store := file.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshot.json"))

	require.NoError(t, store.Put([]byte("a much longer first snapshot body")))
	require.NoError(t, store.Put([]byte("short")))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), got)
}
