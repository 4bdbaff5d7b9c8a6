package index

import (
	"sort"

	"github.com/wkalt/newsledger/news"
)

/*
The content index maintains secondary lookup structures over a contiguous run
of records: content hash, category, tag, and creation time. It is used by the
hot buffer for resident records and by the shard reader for records inside a
decoded archive shard. It has no knowledge of archiving and no locking of its
own; callers serialize access.

Every posting list is kept in ascending index order. Because records are only
ever appended at the tail and removed from the head, insertion is an append and
removal is almost always a trim of the first element.
*/

////////////////////////////////////////////////////////////////////////////////

type timeEntry struct {
	index     uint64
	createdAt uint64
}

// Index is a content index over a set of records.
type Index struct {
	hashes     map[string][]uint64
	categories map[string][]uint64
	tags       map[string][]uint64
	times      []timeEntry
}

// New returns an empty index.
func New() *Index {
	return &Index{
		hashes:     make(map[string][]uint64),
		categories: make(map[string][]uint64),
		tags:       make(map[string][]uint64),
	}
}

// Build returns an index over the supplied records, which must be in
// ascending index order.
func Build(records []news.Record) *Index {
	ix := New()
	for _, r := range records {
		ix.Insert(r)
	}
	return ix
}

// Insert adds a record to every structure. Records must be inserted in
// ascending index order.
func (ix *Index) Insert(r news.Record) {
	ix.hashes[r.Hash] = append(ix.hashes[r.Hash], r.Index)
	ix.categories[r.Category] = append(ix.categories[r.Category], r.Index)
	for _, tag := range r.Tags {
		ix.tags[tag] = append(ix.tags[tag], r.Index)
	}
	ix.times = append(ix.times, timeEntry{index: r.Index, createdAt: r.CreatedAt})
}

// Remove drops a record from every structure.
func (ix *Index) Remove(r news.Record) {
	removePosting(ix.hashes, r.Hash, r.Index)
	removePosting(ix.categories, r.Category, r.Index)
	for _, tag := range r.Tags {
		removePosting(ix.tags, tag, r.Index)
	}
	i := sort.Search(len(ix.times), func(i int) bool {
		return ix.times[i].index >= r.Index
	})
	if i < len(ix.times) && ix.times[i].index == r.Index {
		if i == 0 {
			ix.times = ix.times[1:]
		} else {
			ix.times = append(ix.times[:i], ix.times[i+1:]...)
		}
	}
}

// LookupHash returns the lowest index carrying the hash. On collision the
// first writer wins.
func (ix *Index) LookupHash(hash string) (uint64, bool) {
	postings := ix.hashes[hash]
	if len(postings) == 0 {
		return 0, false
	}
	return postings[0], true
}

// Category returns a page of indices for the category along with the total
// number of matches.
func (ix *Index) Category(name string, offset, limit int) ([]uint64, int) {
	return paginate(ix.categories[name], offset, limit)
}

// Tag returns a page of indices for the tag along with the total number of
// matches.
func (ix *Index) Tag(name string, offset, limit int) ([]uint64, int) {
	return paginate(ix.tags[name], offset, limit)
}

// CategoryCount returns the number of records in the category.
func (ix *Index) CategoryCount(name string) int {
	return len(ix.categories[name])
}

// TagCount returns the number of records carrying the tag.
func (ix *Index) TagCount(name string) int {
	return len(ix.tags[name])
}

// CategoryCounts returns the number of records per category.
func (ix *Index) CategoryCounts() map[string]uint64 {
	return counts(ix.categories)
}

// TagCounts returns the number of records per tag.
func (ix *Index) TagCounts() map[string]uint64 {
	return counts(ix.tags)
}

// ScanByTime returns up to max indices with createdAt >= begin, in ascending
// index order.
func (ix *Index) ScanByTime(begin uint64, max int) []uint64 {
	if max <= 0 {
		return []uint64{}
	}
	i := sort.Search(len(ix.times), func(i int) bool {
		return ix.times[i].createdAt >= begin
	})
	end := min(i+max, len(ix.times))
	result := make([]uint64, 0, end-i)
	for _, entry := range ix.times[i:end] {
		result = append(result, entry.index)
	}
	return result
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.times)
}

func paginate(postings []uint64, offset, limit int) ([]uint64, int) {
	total := len(postings)
	limit = min(limit, news.MaxPageSize)
	if offset < 0 || offset >= total || limit <= 0 {
		return []uint64{}, total
	}
	end := min(offset+limit, total)
	page := make([]uint64, end-offset)
	copy(page, postings[offset:end])
	return page, total
}

func counts(m map[string][]uint64) map[string]uint64 {
	result := make(map[string]uint64, len(m))
	for k, v := range m {
		result[k] = uint64(len(v))
	}
	return result
}

func removePosting(m map[string][]uint64, key string, index uint64) {
	postings := m[key]
	i := sort.Search(len(postings), func(i int) bool {
		return postings[i] >= index
	})
	if i == len(postings) || postings[i] != index {
		return
	}
	if i == 0 {
		postings = postings[1:]
	} else {
		postings = append(postings[:i], postings[i+1:]...)
	}
	if len(postings) == 0 {
		delete(m, key)
		return
	}
	m[key] = postings
}
