package shard_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/storage"
)

func records(start, n int) []news.Record {
	result := make([]news.Record, 0, n)
	for i := start; i < start+n; i++ {
		category := "sports"
		if i%2 == 1 {
			category = "politics"
		}
		s := news.Submission{
			Provider: "wire",
			Category: category,
			Tags:     []string{"t", fmt.Sprintf("t%d", i%3)},
			Title:    fmt.Sprintf("title %d", i),
		}
		result = append(result, s.Record(uint64(i), uint64(1000+i*10)))
	}
	return result
}

func written(t *testing.T, p *shard.ObjectProvisioner, recs []news.Record) string {
	t.Helper()
	ctx := context.Background()
	handle, err := p.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Write(ctx, handle, recs))
	return handle
}

func TestObjectProvisioner(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	p, err := shard.NewObjectProvisioner(store, 2)
	require.NoError(t, err)
	recs := records(10, 6)
	handle := written(t, p, recs)

	t.Run("read by index", func(t *testing.T) {
		cases := []struct {
			assertion string
			index     uint64
			err       error
		}{
			{"first", 10, nil},
			{"last", 15, nil},
			{"below range", 9, news.ErrNotFound},
			{"above range", 16, news.ErrNotFound},
		}
		for _, c := range cases {
			t.Run(c.assertion, func(t *testing.T) {
				r, err := p.ReadByIndex(ctx, handle, c.index)
				if c.err != nil {
					require.ErrorIs(t, err, c.err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, recs[c.index-10], r)
			})
		}
	})

	t.Run("read by hash", func(t *testing.T) {
		r, err := p.ReadByHash(ctx, handle, recs[3].Hash)
		require.NoError(t, err)
		assert.Equal(t, uint64(13), r.Index)

		_, err = p.ReadByHash(ctx, handle, "nope")
		require.ErrorIs(t, err, news.ErrNotFound)
	})

	t.Run("category pages", func(t *testing.T) {
		page, err := p.Category(ctx, handle, "sports", 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint64{10, 12}, indices(page))

		page, err = p.Category(ctx, handle, "sports", 2, 10)
		require.NoError(t, err)
		assert.Equal(t, []uint64{14}, indices(page))

		page, err = p.Category(ctx, handle, "weather", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("tag pages", func(t *testing.T) {
		page, err := p.Tag(ctx, handle, "t1", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []uint64{10, 13}, indices(page))
	})

	t.Run("scan by time", func(t *testing.T) {
		page, err := p.ScanByTime(ctx, handle, 1125, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint64{13, 14}, indices(page))
	})

	t.Run("latest", func(t *testing.T) {
		page, err := p.Latest(ctx, handle, 3)
		require.NoError(t, err)
		assert.Equal(t, []uint64{15, 14, 13}, indices(page))

		page, err = p.Latest(ctx, handle, 100)
		require.NoError(t, err)
		assert.Len(t, page, 6)
	})

	t.Run("reads survive cache eviction", func(t *testing.T) {
		other := written(t, p, records(16, 2))
		third := written(t, p, records(18, 2))
		for _, h := range []string{other, third, handle} {
			_, err := p.Latest(ctx, h, 1)
			require.NoError(t, err)
		}
		r, err := p.ReadByIndex(ctx, handle, 11)
		require.NoError(t, err)
		assert.Equal(t, recs[1], r)
	})
}

func TestProvisionerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("unwritten shard", func(t *testing.T) {
		p, err := shard.NewObjectProvisioner(storage.NewMemStore(), 4)
		require.NoError(t, err)
		handle, err := p.Create(ctx)
		require.NoError(t, err)
		_, err = p.ReadByIndex(ctx, handle, 0)
		require.ErrorIs(t, err, shard.ErrEmptyShard)
	})

	t.Run("discard removes object", func(t *testing.T) {
		store := storage.NewMemStore()
		p, err := shard.NewObjectProvisioner(store, 4)
		require.NoError(t, err)
		handle := written(t, p, records(0, 3))
		_, err = p.ReadByIndex(ctx, handle, 1)
		require.NoError(t, err)
		require.NoError(t, p.Discard(ctx, handle))
		assert.Equal(t, 0, store.Len())
		_, err = p.ReadByIndex(ctx, handle, 1)
		require.ErrorIs(t, err, shard.ErrShardNotFound)
	})

	t.Run("write rejects bad input", func(t *testing.T) {
		p, err := shard.NewObjectProvisioner(storage.NewMemStore(), 4)
		require.NoError(t, err)
		handle, err := p.Create(ctx)
		require.NoError(t, err)
		require.Error(t, p.Write(ctx, handle, nil))
		gappy := append(records(0, 2), records(3, 1)...)
		require.Error(t, p.Write(ctx, handle, gappy))
	})

	t.Run("store failures propagate", func(t *testing.T) {
		p, err := shard.NewObjectProvisioner(failingStore{}, 4)
		require.NoError(t, err)
		_, err = p.Create(ctx)
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("corrupt object", func(t *testing.T) {
		store := storage.NewMemStore()
		require.NoError(t, store.Put(ctx, "shards/bad", bytes.NewReader([]byte("garbage"))))
		p, err := shard.NewObjectProvisioner(store, 4)
		require.NoError(t, err)
		_, err = p.Latest(ctx, "shards/bad", 1)
		require.Error(t, err)
	})
}

func indices(records []news.Record) []uint64 {
	result := make([]uint64, len(records))
	for i, r := range records {
		result[i] = r.Index
	}
	return result
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) Put(context.Context, string, io.Reader) error { return errStoreDown }
func (failingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errStoreDown
}
func (failingStore) Delete(context.Context, string) error { return errStoreDown }
