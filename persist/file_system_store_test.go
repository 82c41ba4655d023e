package persist

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"southwinds.dev/microkv/internal/misc"
)

func TestFileSystemStoreSaveAndLoad(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	data := []byte("serialized store state")
	require.NoError(t, store.SaveState(data))

	loaded, err := store.LoadState()
	require.NoError(t, err)
	require.Equal(t, data, loaded)
}

func TestFileSystemStoreOverwrite(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState([]byte("first")))
	require.NoError(t, store.SaveState([]byte("second")))

	loaded, err := store.LoadState()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), loaded)
}

func TestFileSystemStoreStateExists(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	exists, err := store.StateExists()
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.SaveState([]byte("x")))

	exists, err = store.StateExists()
	require.NoError(t, err)
	require.True(t, exists)
}

func TestFileSystemStoreDeleteState(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState([]byte("x")))
	require.NoError(t, store.DeleteState())

	exists, err := store.StateExists()
	require.NoError(t, err)
	require.False(t, exists)

	// Deleting an absent state is not an error.
	require.NoError(t, store.DeleteState())
}

func TestFileSystemStoreLoadMissing(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadState()
	require.Error(t, err)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileSystemStorePermissions(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileSystemStore(base, "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState([]byte("sensitive")))

	info, err := os.Stat(store.StatePath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileSystemStoreCreatesBasePath(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "workspace")
	store, err := NewFileSystemStore(base, "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState([]byte("x")))
	_, err = os.Stat(base)
	require.NoError(t, err)
}

func TestFileSystemStoreNoTempFileLeftBehind(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileSystemStore(base, "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState([]byte("x")))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "testdb"+misc.StoreFileExt, entries[0].Name())
}

func TestFileSystemStoreRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "..", "a/b", `a\b`, "../escape"} {
		_, err := NewFileSystemStore(t.TempDir(), name)
		require.Error(t, err, "name %q should be rejected", name)
	}
}

func TestFileSystemStoreGetType(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "testdb")
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, string(StoreTypeFileSystem), store.GetType())
	require.NoError(t, store.Ping())
}

func TestNewStoreFactory(t *testing.T) {
	store, err := NewStore(StoreConfig{
		Type:   StoreTypeFileSystem,
		Config: map[string]interface{}{"base_path": t.TempDir()},
	}, "factorydb")
	require.NoError(t, err)
	defer store.Close()
	require.Equal(t, string(StoreTypeFileSystem), store.GetType())

	_, err = NewStore(StoreConfig{Type: "carrier-pigeon"}, "db")
	require.Error(t, err)
}
