package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	ds, err := New(path)
	require.NoError(t, err)
	defer ds.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(data))
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	ds, err := New(path)
	require.NoError(t, err)

	ds.Add("k1", map[string]any{"name": "one"})
	ds.Add("k2", "two")
	require.NoError(t, ds.Close())

	ds2, err := New(path)
	require.NoError(t, err)
	defer ds2.Close()

	v, ok := ds2.Get("k2")
	require.True(t, ok)
	assert.Equal(t, "two", v)

	assert.ElementsMatch(t, []string{"k1", "k2"}, ds2.Keys())
}

func TestStoreDelete(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer ds.Close()

	ds.Add("k1", "v1")
	ds.Delete("k1")

	_, ok := ds.Get("k1")
	assert.False(t, ok)
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestStoreCloseTwice(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)

	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())
}

func TestStoreSaveSkipsUnchangedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	ds, err := New(path)
	require.NoError(t, err)
	defer ds.Close()

	ds.Add("k1", "v1")
	require.NoError(t, ds.Save())

	before, err := os.Stat(path)
	require.NoError(t, err)

	// No mutation between saves, the file must not be rewritten.
	require.NoError(t, ds.Save())
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}
