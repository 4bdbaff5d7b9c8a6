package shard

import (
	"context"
	"errors"

	"github.com/wkalt/newsledger/news"
)

/*
Package shard defines the capability the archival scheduler and query router
use to create, fill, and read archive shards. The core never assumes anything
about how a shard is provisioned; it only holds the opaque handle returned by
Create and passes it back on every call.

A shard is written exactly once, by Write, with a contiguous run of records.
After a successful Write it is immutable.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrShardNotFound is returned when a handle does not name a written shard.
var ErrShardNotFound = errors.New("shard not found")

// Provisioner creates and serves archive shards.
type Provisioner interface {
	// Create provisions a new, empty storage unit and returns its handle.
	Create(ctx context.Context) (string, error)
	// Write bulk-writes a contiguous run of records into the shard.
	Write(ctx context.Context, handle string, records []news.Record) error
	// Discard releases a shard that was created but never registered.
	Discard(ctx context.Context, handle string) error

	// ReadByIndex returns the record with the given global index.
	ReadByIndex(ctx context.Context, handle string, index uint64) (news.Record, error)
	// ReadByHash returns the first record in the shard with the content hash.
	ReadByHash(ctx context.Context, handle string, hash string) (news.Record, error)
	// Category returns a page of the shard's records in the category, in
	// ascending index order. Offset and limit are shard-local.
	Category(ctx context.Context, handle string, name string, offset, limit int) ([]news.Record, error)
	// Tag is Category for tags.
	Tag(ctx context.Context, handle string, name string, offset, limit int) ([]news.Record, error)
	// ScanByTime returns up to max records created at or after begin, in
	// ascending index order.
	ScanByTime(ctx context.Context, handle string, begin uint64, max int) ([]news.Record, error)
	// Latest returns up to n of the shard's most recent records, newest
	// first.
	Latest(ctx context.Context, handle string, n int) ([]news.Record, error)
}
