package storage

import (
	"context"
	"errors"
	"io"
)

/*
The storage provider interface describes the minimal set of operations the
shard provisioner needs from persistent storage. Archive shards are written
once as whole objects and read back whole, so there are no range reads.
Implementations must be safe for concurrent use.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object is not found.
var ErrObjectNotFound = errors.New("object not found")

// Provider is the interface for a storage provider.
type Provider interface {
	Put(ctx context.Context, id string, r io.Reader) error
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}
