package shard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wkalt/newsledger/index"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/storage"
	"github.com/wkalt/newsledger/util/log"
)

/*
ObjectProvisioner stores each shard as a single object in a storage provider.
Handles are object identifiers of the form "shards/<uuid>". Decoded shards are
kept in an LRU cache keyed by handle; because shards are immutable once
written, cache entries never need invalidation except on Discard.
*/

////////////////////////////////////////////////////////////////////////////////

const shardPrefix = "shards/"

type shardData struct {
	start   uint64
	records []news.Record
	ix      *index.Index
}

func (d *shardData) get(i uint64) (news.Record, bool) {
	if i < d.start || i >= d.start+uint64(len(d.records)) {
		return news.Record{}, false
	}
	return d.records[i-d.start], true
}

func (d *shardData) resolve(indices []uint64) []news.Record {
	result := make([]news.Record, 0, len(indices))
	for _, i := range indices {
		if r, ok := d.get(i); ok {
			result = append(result, r)
		}
	}
	return result
}

// ObjectProvisioner is a Provisioner backed by a storage.Provider.
type ObjectProvisioner struct {
	store storage.Provider
	cache *lru.Cache[string, *shardData]
}

// NewObjectProvisioner constructs a provisioner over the supplied store,
// caching up to cacheSize decoded shards.
func NewObjectProvisioner(store storage.Provider, cacheSize int) (*ObjectProvisioner, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *shardData](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create shard cache: %w", err)
	}
	return &ObjectProvisioner{store: store, cache: cache}, nil
}

// Create provisions an empty shard object.
func (p *ObjectProvisioner) Create(ctx context.Context) (string, error) {
	handle := shardPrefix + uuid.New().String()
	if err := p.store.Put(ctx, handle, bytes.NewReader(nil)); err != nil {
		return "", fmt.Errorf("failed to create shard %s: %w", handle, err)
	}
	log.Debugf(ctx, "Created shard %s", handle)
	return handle, nil
}

// Write encodes the records and replaces the shard's object.
func (p *ObjectProvisioner) Write(ctx context.Context, handle string, records []news.Record) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, handle, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write shard %s: %w", handle, err)
	}
	log.Debugw(ctx, "Wrote shard",
		"handle", handle,
		"start", records[0].Index,
		"count", len(records),
		"bytes", len(data),
	)
	return nil
}

// Discard deletes the shard's object.
func (p *ObjectProvisioner) Discard(ctx context.Context, handle string) error {
	p.cache.Remove(handle)
	if err := p.store.Delete(ctx, handle); err != nil {
		return fmt.Errorf("failed to discard shard %s: %w", handle, err)
	}
	return nil
}

// ReadByIndex returns the record at the global index.
func (p *ObjectProvisioner) ReadByIndex(ctx context.Context, handle string, i uint64) (news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return news.Record{}, err
	}
	r, ok := d.get(i)
	if !ok {
		return news.Record{}, fmt.Errorf("index %d not in shard %s: %w", i, handle, news.ErrNotFound)
	}
	return r, nil
}

// ReadByHash returns the first record in the shard with the hash.
func (p *ObjectProvisioner) ReadByHash(ctx context.Context, handle string, hash string) (news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return news.Record{}, err
	}
	i, ok := d.ix.LookupHash(hash)
	if !ok {
		return news.Record{}, news.ErrNotFound
	}
	r, _ := d.get(i)
	return r, nil
}

// Category returns a page of the shard's records in the category.
func (p *ObjectProvisioner) Category(ctx context.Context, handle string, name string, offset, limit int) ([]news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	indices, _ := d.ix.Category(name, offset, limit)
	return d.resolve(indices), nil
}

// Tag returns a page of the shard's records carrying the tag.
func (p *ObjectProvisioner) Tag(ctx context.Context, handle string, name string, offset, limit int) ([]news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	indices, _ := d.ix.Tag(name, offset, limit)
	return d.resolve(indices), nil
}

// ScanByTime returns up to max records created at or after begin.
func (p *ObjectProvisioner) ScanByTime(ctx context.Context, handle string, begin uint64, max int) ([]news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	return d.resolve(d.ix.ScanByTime(begin, max)), nil
}

// Latest returns up to n of the shard's newest records, newest first.
func (p *ObjectProvisioner) Latest(ctx context.Context, handle string, n int) ([]news.Record, error) {
	d, err := p.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if n > len(d.records) {
		n = len(d.records)
	}
	result := make([]news.Record, 0, n)
	for i := len(d.records) - 1; i >= len(d.records)-n; i-- {
		result = append(result, d.records[i])
	}
	return result, nil
}

func (p *ObjectProvisioner) load(ctx context.Context, handle string) (*shardData, error) {
	if d, ok := p.cache.Get(handle); ok {
		return d, nil
	}
	rc, err := p.store.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s: %w", handle, ErrShardNotFound)
		}
		return nil, fmt.Errorf("failed to read shard %s: %w", handle, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read shard %s: %w", handle, err)
	}
	file, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", handle, err)
	}
	d := &shardData{
		start:   file.Start,
		records: file.Records,
		ix:      index.Build(file.Records),
	}
	p.cache.Add(handle, d)
	return d, nil
}
