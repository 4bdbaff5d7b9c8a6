package news

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
)

/*
Package news defines the record type stored by the ledger. A record is
immutable once appended: its global index and creation time are assigned by the
hot buffer at append time and never change, regardless of whether the record
later moves to an archive shard.
*/

////////////////////////////////////////////////////////////////////////////////

// MaxPageSize is the largest page returned by any paginated query. Larger
// limits are clamped.
const MaxPageSize = 100

// Record is a single news item in the ledger.
type Record struct {
	Index     uint64   `json:"index"`
	Provider  string   `json:"provider"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Hash      string   `json:"hash"`
	CreatedAt uint64   `json:"createdAt"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	URL       string   `json:"url,omitempty"`
}

// Submission is a record as supplied by a provider, before an index and
// creation time have been assigned.
type Submission struct {
	Provider string   `json:"provider"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	URL      string   `json:"url,omitempty"`
}

// Page is one page of a paginated query. TotalElements counts every match
// across all tiers, not just the ones in Content.
type Page struct {
	Content       []Record `json:"content"`
	TotalElements uint64   `json:"totalElements"`
}

// Normalize returns a copy of the submission with duplicate tags removed. Tag
// order is otherwise preserved.
func (s Submission) Normalize() Submission {
	seen := make(map[string]struct{}, len(s.Tags))
	tags := make([]string, 0, len(s.Tags))
	for _, tag := range s.Tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	s.Tags = tags
	return s
}

// Record builds the immutable record for a submission.
func (s Submission) Record(index uint64, createdAt uint64) Record {
	s = s.Normalize()
	return Record{
		Index:     index,
		Provider:  s.Provider,
		Category:  s.Category,
		Tags:      s.Tags,
		Hash:      ContentHash(s),
		CreatedAt: createdAt,
		Title:     s.Title,
		Body:      s.Body,
		URL:       s.URL,
	}
}

// ContentHash returns the hex-encoded 128-bit murmur3 digest of the
// submission's canonical content. Index and creation time do not participate,
// so resubmitting identical content produces an identical hash.
func ContentHash(s Submission) string {
	h := murmur3.New128()
	buf := make([]byte, binary.MaxVarintLen64)
	write := func(field string) {
		n := binary.PutUvarint(buf, uint64(len(field)))
		_, _ = h.Write(buf[:n])
		_, _ = h.Write([]byte(field))
	}
	write(s.Provider)
	write(s.Category)
	n := binary.PutUvarint(buf, uint64(len(s.Tags)))
	_, _ = h.Write(buf[:n])
	for _, tag := range s.Tags {
		write(tag)
	}
	write(s.Title)
	write(s.Body)
	write(s.URL)
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// HasTag reports whether the record carries the tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
