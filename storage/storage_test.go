package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/storage"
)

func TestStorageProviders(t *testing.T) {
	ctx := context.Background()

	tmpdir, err := os.MkdirTemp("", "newsledger-dirstore")
	require.NoError(t, err)
	defer os.RemoveAll(tmpdir)

	dirstore, err := storage.NewDirectoryStore(tmpdir)
	require.NoError(t, err)

	cases := []struct {
		assertion string
		store     storage.Provider
	}{
		{
			"memory store",
			storage.NewMemStore(),
		},
		{
			"directory store",
			dirstore,
		},
	}

	read := func(t *testing.T, store storage.Provider, id string) []byte {
		t.Helper()
		rc, err := store.Get(ctx, id)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return data
	}

	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			t.Run("put and get", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "test", strings.NewReader("hello")))
				require.Equal(t, []byte("hello"), read(t, c.store, "test"))
			})
			t.Run("nested ids", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "shards/abc", bytes.NewReader([]byte{1, 2, 3})))
				require.Equal(t, []byte{1, 2, 3}, read(t, c.store, "shards/abc"))
			})
			t.Run("overwrite", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "test2", strings.NewReader("hello")))
				require.NoError(t, c.store.Put(ctx, "test2", strings.NewReader("world")))
				require.Equal(t, []byte("world"), read(t, c.store, "test2"))
			})
			t.Run("delete", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "test3", strings.NewReader("hello")))
				require.NoError(t, c.store.Delete(ctx, "test3"))
				_, err := c.store.Get(ctx, "test3")
				require.ErrorIs(t, err, storage.ErrObjectNotFound)
			})
			t.Run("get object that does not exist returns error", func(t *testing.T) {
				_, err := c.store.Get(ctx, "test4")
				require.ErrorIs(t, err, storage.ErrObjectNotFound)
			})
			t.Run("deleting object that does not exist returns no error", func(t *testing.T) {
				require.NoError(t, c.store.Delete(ctx, "test100"))
			})
		})
	}
}
