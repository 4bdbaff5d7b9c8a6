package hotbuf

import (
	"github.com/wkalt/newsledger/news"
)

// View is a read-only view of the buffer, valid only inside Buffer.Read.
type View struct {
	b *Buffer
}

// Lowest returns the lowest resident index.
func (v *View) Lowest() uint64 {
	return v.b.lowest
}

// Next returns the next index to be assigned.
func (v *View) Next() uint64 {
	return v.b.next()
}

// Size returns the number of resident records.
func (v *View) Size() int {
	return len(v.b.records)
}

// Get returns the record at index i.
func (v *View) Get(i uint64) (news.Record, error) {
	if i < v.b.lowest {
		return news.Record{}, ErrEvicted
	}
	if i >= v.b.next() {
		return news.Record{}, news.ErrNotFound
	}
	return v.b.records[i-v.b.lowest], nil
}

// LookupHash returns the first resident record with the hash.
func (v *View) LookupHash(hash string) (news.Record, bool) {
	i, ok := v.b.ix.LookupHash(hash)
	if !ok {
		return news.Record{}, false
	}
	return v.b.records[i-v.b.lowest], true
}

// Category returns a page of resident records in the category and the number
// of resident matches.
func (v *View) Category(name string, offset, limit int) ([]news.Record, int) {
	indices, total := v.b.ix.Category(name, offset, limit)
	return v.resolve(indices), total
}

// Tag returns a page of resident records carrying the tag and the number of
// resident matches.
func (v *View) Tag(name string, offset, limit int) ([]news.Record, int) {
	indices, total := v.b.ix.Tag(name, offset, limit)
	return v.resolve(indices), total
}

// CategoryCount returns the number of resident records in the category.
func (v *View) CategoryCount(name string) int {
	return v.b.ix.CategoryCount(name)
}

// TagCount returns the number of resident records carrying the tag.
func (v *View) TagCount(name string) int {
	return v.b.ix.TagCount(name)
}

// ScanByTime returns up to max resident records created at or after begin,
// in ascending index order.
func (v *View) ScanByTime(begin uint64, max int) []news.Record {
	return v.resolve(v.b.ix.ScanByTime(begin, max))
}

// Latest returns up to n of the most recent resident records, newest first.
func (v *View) Latest(n int) []news.Record {
	n = min(n, len(v.b.records))
	if n <= 0 {
		return []news.Record{}
	}
	result := make([]news.Record, 0, n)
	for i := len(v.b.records) - 1; i >= len(v.b.records)-n; i-- {
		result = append(result, v.b.records[i])
	}
	return result
}

func (v *View) resolve(indices []uint64) []news.Record {
	result := make([]news.Record, len(indices))
	for i, idx := range indices {
		result[i] = v.b.records[idx-v.b.lowest]
	}
	return result
}
