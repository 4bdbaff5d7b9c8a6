package hotbuf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wkalt/newsledger/index"
	"github.com/wkalt/newsledger/news"
)

/*
The hot buffer is the bounded, append-only, in-memory tier of the ledger. It
holds the records with global indices in [lowest, next) and owns a content
index over exactly those records.

Records enter only through Append, which assigns the next global index and a
creation time, and leave only through EvictPrefix, which the archival scheduler
calls after a prefix has been durably registered in an archive shard. Readers
take a shared lock; Append, EvictPrefix and Restore take the exclusive lock, so
a reader never sees a half-applied append or eviction.

The hard ceiling bounds the number of resident records and is distinct from the
archival threshold: the threshold starts archival, the ceiling rejects writes.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrCapacityExceeded is returned by Append when the hard ceiling is reached.
var ErrCapacityExceeded = errors.New("hot buffer capacity exceeded")

// ErrEvicted is returned by Get for indices below the buffer's lowest index.
// The record exists but has moved to an archive shard.
var ErrEvicted = errors.New("record evicted from hot buffer")

// Buffer is the hot tier.
type Buffer struct {
	mtx      *sync.RWMutex
	records  []news.Record
	lowest   uint64
	lastTime uint64
	ix       *index.Index

	ceiling int
	clock   func() time.Time
}

// New constructs an empty buffer.
func New(opts ...Option) *Buffer {
	conf := config{
		ceiling: 0,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Buffer{
		mtx:      &sync.RWMutex{},
		records:  []news.Record{},
		lowest:   conf.lowest,
		lastTime: conf.lastTime,
		ix:       index.New(),
		ceiling:  conf.ceiling,
		clock:    conf.clock,
	}
}

// Append assigns the next global index to the submission, stores the record,
// and indexes it. The caller is responsible for validating categories and
// tags.
func (b *Buffer) Append(s news.Submission) (news.Record, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.ceiling > 0 && len(b.records) >= b.ceiling {
		return news.Record{}, fmt.Errorf("%w: %d records resident", ErrCapacityExceeded, len(b.records))
	}
	now := uint64(b.clock().UnixNano())
	if now < b.lastTime {
		now = b.lastTime
	}
	b.lastTime = now
	record := s.Record(b.next(), now)
	b.records = append(b.records, record)
	b.ix.Insert(record)
	residentRecords.Set(float64(len(b.records)))
	return record, nil
}

// Get returns the record at index i. Indices below the lowest resident index
// return ErrEvicted; indices at or beyond next return news.ErrNotFound.
func (b *Buffer) Get(i uint64) (news.Record, error) {
	var record news.Record
	var err error
	b.Read(func(v *View) {
		record, err = v.Get(i)
	})
	return record, err
}

// EvictPrefix removes every record with index below bound, along with its
// index entries. It returns the number of records removed. A bound at or below
// the lowest index is a no-op.
func (b *Buffer) EvictPrefix(bound uint64) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if bound > b.next() {
		return 0, fmt.Errorf("eviction bound %d beyond next index %d", bound, b.next())
	}
	if bound <= b.lowest {
		return 0, nil
	}
	n := int(bound - b.lowest)
	for _, r := range b.records[:n] {
		b.ix.Remove(r)
	}
	remaining := make([]news.Record, len(b.records)-n)
	copy(remaining, b.records[n:])
	b.records = remaining
	b.lowest = bound
	residentRecords.Set(float64(len(b.records)))
	return n, nil
}

// Slice returns a copy of the resident records in [lo, hi).
func (b *Buffer) Slice(lo, hi uint64) ([]news.Record, error) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	if lo < b.lowest || hi > b.next() || lo > hi {
		return nil, fmt.Errorf("range [%d, %d) outside resident range [%d, %d)", lo, hi, b.lowest, b.next())
	}
	result := make([]news.Record, hi-lo)
	copy(result, b.records[lo-b.lowest:hi-b.lowest])
	return result, nil
}

// Read calls f with a consistent view of the buffer. The view must not be
// retained or used after f returns, and f must not block.
func (b *Buffer) Read(f func(v *View)) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	f(&View{b: b})
}

// Size returns the number of resident records.
func (b *Buffer) Size() int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return len(b.records)
}

// Full reports whether the buffer has reached its hard ceiling.
func (b *Buffer) Full() bool {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return b.ceiling > 0 && len(b.records) >= b.ceiling
}

// Lowest returns the lowest resident index.
func (b *Buffer) Lowest() uint64 {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return b.lowest
}

// Next returns the index the next append will receive. It is also the total
// number of records ever appended.
func (b *Buffer) Next() uint64 {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return b.next()
}

func (b *Buffer) next() uint64 {
	return b.lowest + uint64(len(b.records))
}
