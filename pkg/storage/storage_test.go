package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/types"
)

func TestOpenMemoryHandleRoundTrips(t *testing.T) {
	h, err := Open(types.StorageDescriptor{Kind: types.StorageMemory})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Put([]byte("k"), []byte("v")))
	got, err := h.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestOpenMemoryHandleMissingKeyIsNil(t *testing.T) {
	h, err := Open(types.StorageDescriptor{Kind: types.StorageMemory})
	require.NoError(t, err)
	defer h.Close()

	got, err := h.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenFileHandleCreatesDirectoryAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "instance.db")

	h, err := Open(types.StorageDescriptor{Kind: types.StorageFile, Path: path})
	require.NoError(t, err)

	require.NoError(t, h.Put([]byte("a"), []byte("1")))
	require.NoError(t, h.Close())

	h2, err := Open(types.StorageDescriptor{Kind: types.StorageFile, Path: path})
	require.NoError(t, err)
	defer h2.Close()

	got, err := h2.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestOpenFileHandleRequiresPath(t *testing.T) {
	_, err := Open(types.StorageDescriptor{Kind: types.StorageFile})
	require.Error(t, err)
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(types.StorageDescriptor{Kind: "bogus"})
	require.Error(t, err)
}

func TestMemoryHandleForEach(t *testing.T) {
	h, err := Open(types.StorageDescriptor{Kind: types.StorageMemory})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Put([]byte("a"), []byte("1")))
	require.NoError(t, h.Put([]byte("b"), []byte("2")))

	seen := map[string]string{}
	require.NoError(t, h.ForEach(func(k, v []byte) error {
		seen[string(k)] = string(v)
		return nil
	}))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
