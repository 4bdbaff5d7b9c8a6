package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wkalt/newsledger/news"
)

/*
The archive directory is the ordered catalog of archive shards. Each descriptor
records the contiguous global index range a shard holds, the opaque handle of
the storage unit that holds it, and a summary of its contents (per-category and
per-tag counts and the creation-time span) that lets the query router plan
cross-shard reads without opening shards.

Descriptors are kept in strictly increasing start order, and their ranges
partition [0, End()) exactly. Register enforces this on every insertion: a
descriptor whose start is not exactly End(), or whose range is empty, is an
invariant violation and indicates a bug in the archival scheduler.

The directory holds no data itself, but losing it makes the shards opaque. The
SQL implementation is the durable one; the in-memory implementation is for
tests.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrInvariantViolation is returned when a registration would leave a gap or
// an overlap in the partition, or when persisted descriptors do not form one.
var ErrInvariantViolation = errors.New("archive directory invariant violation")

// Descriptor describes one archive shard.
type Descriptor struct {
	Handle     string            `json:"handle"`
	Start      uint64            `json:"start"`
	End        uint64            `json:"end"`
	Count      uint64            `json:"count"`
	MinTime    uint64            `json:"minTime"`
	MaxTime    uint64            `json:"maxTime"`
	Categories map[string]uint64 `json:"categories"`
	Tags       map[string]uint64 `json:"tags"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Contains reports whether the shard holds index i.
func (d Descriptor) Contains(i uint64) bool {
	return i >= d.Start && i < d.End
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%d, %d)", d.Handle, d.Start, d.End)
}

// NewDescriptor summarizes a contiguous run of records destined for the shard
// with the given handle.
func NewDescriptor(handle string, records []news.Record) (Descriptor, error) {
	if len(records) == 0 {
		return Descriptor{}, fmt.Errorf("%w: empty shard %s", ErrInvariantViolation, handle)
	}
	d := Descriptor{
		Handle:     handle,
		Start:      records[0].Index,
		End:        records[len(records)-1].Index + 1,
		Count:      uint64(len(records)),
		MinTime:    records[0].CreatedAt,
		MaxTime:    records[len(records)-1].CreatedAt,
		Categories: make(map[string]uint64),
		Tags:       make(map[string]uint64),
		CreatedAt:  time.Now().UTC(),
	}
	if d.End-d.Start != d.Count {
		return Descriptor{}, fmt.Errorf("%w: records for shard %s are not contiguous", ErrInvariantViolation, handle)
	}
	for _, r := range records {
		d.Categories[r.Category]++
		for _, tag := range r.Tags {
			d.Tags[tag]++
		}
	}
	return d, nil
}

// Location is the result of resolving a global index.
type Location struct {
	// InHotBuffer is set when the index lies at or beyond the directory's
	// covered end. Whether the hot buffer actually holds it is for the hot
	// buffer to say.
	InHotBuffer bool
	Shard       Descriptor
}

// Directory is the archive directory interface.
type Directory interface {
	// Register appends a descriptor for a freshly written shard.
	Register(ctx context.Context, d Descriptor) error
	// Resolve locates the tier holding index i.
	Resolve(i uint64) (Location, error)
	// List returns every descriptor in ascending range order.
	List() []Descriptor
	// End returns the exclusive upper bound of the archived range. The hot
	// buffer's lowest index equals End once an archival run completes.
	End() uint64
}

// catalog is the in-memory ordered descriptor list shared by both
// implementations.
type catalog struct {
	mtx    *sync.RWMutex
	shards []Descriptor
}

func newCatalog() catalog {
	return catalog{
		mtx:    &sync.RWMutex{},
		shards: []Descriptor{},
	}
}

func (c *catalog) end() uint64 {
	if len(c.shards) == 0 {
		return 0
	}
	return c.shards[len(c.shards)-1].End
}

// check validates a candidate against the current partition. Caller holds
// the lock.
func (c *catalog) check(d Descriptor) error {
	if d.Handle == "" {
		return fmt.Errorf("%w: shard has no handle", ErrInvariantViolation)
	}
	if d.End <= d.Start {
		return fmt.Errorf("%w: empty or inverted range [%d, %d)", ErrInvariantViolation, d.Start, d.End)
	}
	if d.Count != d.End-d.Start {
		return fmt.Errorf("%w: shard %s count %d does not match range", ErrInvariantViolation, d.Handle, d.Count)
	}
	end := c.end()
	switch {
	case d.Start < end:
		return fmt.Errorf("%w: range [%d, %d) overlaps archived range [0, %d)",
			ErrInvariantViolation, d.Start, d.End, end)
	case d.Start > end:
		return fmt.Errorf("%w: range [%d, %d) leaves gap after %d",
			ErrInvariantViolation, d.Start, d.End, end)
	}
	for _, s := range c.shards {
		if s.Handle == d.Handle {
			return fmt.Errorf("%w: handle %s already registered", ErrInvariantViolation, d.Handle)
		}
	}
	return nil
}

func (c *catalog) resolve(i uint64) Location {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	if i >= c.end() {
		return Location{InHotBuffer: true}
	}
	j := sort.Search(len(c.shards), func(j int) bool {
		return c.shards[j].End > i
	})
	return Location{Shard: c.shards[j]}
}

func (c *catalog) list() []Descriptor {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	result := make([]Descriptor, len(c.shards))
	copy(result, c.shards)
	return result
}

func (c *catalog) End() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.end()
}
