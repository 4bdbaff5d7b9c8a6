package index_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/index"
	"github.com/wkalt/newsledger/news"
)

func makeRecords(n int) []news.Record {
	records := make([]news.Record, n)
	for i := range records {
		category := "even"
		if i%2 == 1 {
			category = "odd"
		}
		records[i] = news.Record{
			Index:     uint64(i),
			Category:  category,
			Tags:      []string{"all", fmt.Sprintf("mod3-%d", i%3)},
			Hash:      fmt.Sprintf("h%d", i%4),
			CreatedAt: uint64(i * 10),
		}
	}
	return records
}

func TestLookupHash(t *testing.T) {
	ix := index.Build(makeRecords(8))
	cases := []struct {
		assertion string
		hash      string
		expected  uint64
		found     bool
	}{
		{"first writer wins", "h1", 1, true},
		{"first record", "h0", 0, true},
		{"missing", "h9", 0, false},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			idx, ok := ix.LookupHash(c.hash)
			require.Equal(t, c.found, ok)
			require.Equal(t, c.expected, idx)
		})
	}

	t.Run("collision resolves to survivor after removal", func(t *testing.T) {
		records := makeRecords(8)
		ix := index.Build(records)
		ix.Remove(records[1])
		idx, ok := ix.LookupHash("h1")
		require.True(t, ok)
		require.Equal(t, uint64(5), idx)
	})
}

func TestPagination(t *testing.T) {
	ix := index.Build(makeRecords(10))
	cases := []struct {
		assertion     string
		offset, limit int
		expected      []uint64
	}{
		{"first page", 0, 2, []uint64{0, 2}},
		{"second page", 2, 2, []uint64{4, 6}},
		{"short last page", 4, 2, []uint64{8}},
		{"offset past end", 5, 2, []uint64{}},
		{"far past end", 500, 2, []uint64{}},
		{"zero limit", 0, 0, []uint64{}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			page, total := ix.Category("even", c.offset, c.limit)
			require.Equal(t, 5, total)
			require.Equal(t, c.expected, page)
		})
	}

	t.Run("limit clamped to max page size", func(t *testing.T) {
		ix := index.Build(makeRecords(300))
		page, total := ix.Tag("all", 0, 1000)
		require.Equal(t, 300, total)
		require.Len(t, page, news.MaxPageSize)
	})

	t.Run("concatenated pages reproduce match set", func(t *testing.T) {
		ix := index.Build(makeRecords(50))
		var all []uint64
		for offset := 0; ; offset += 3 {
			page, total := ix.Tag("mod3-1", offset, 3)
			require.Equal(t, 17, total)
			if len(page) == 0 {
				break
			}
			all = append(all, page...)
		}
		require.Len(t, all, 17)
		for i, idx := range all {
			require.Equal(t, uint64(1+3*i), idx)
		}
	})
}

func TestScanByTime(t *testing.T) {
	ix := index.Build(makeRecords(10))
	cases := []struct {
		assertion string
		begin     uint64
		max       int
		expected  []uint64
	}{
		{"from start", 0, 3, []uint64{0, 1, 2}},
		{"exact boundary is inclusive", 50, 2, []uint64{5, 6}},
		{"between entries", 55, 10, []uint64{6, 7, 8, 9}},
		{"after everything", 1000, 10, []uint64{}},
		{"zero max", 0, 0, []uint64{}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, ix.ScanByTime(c.begin, c.max))
		})
	}
}

func TestRemove(t *testing.T) {
	records := makeRecords(6)
	ix := index.Build(records)
	for _, r := range records[:3] {
		ix.Remove(r)
	}
	require.Equal(t, 3, ix.Len())
	page, total := ix.Category("odd", 0, 10)
	require.Equal(t, 2, total)
	require.Equal(t, []uint64{3, 5}, page)
	require.Equal(t, []uint64{3, 4, 5}, ix.ScanByTime(0, 10))
	require.Equal(t, map[string]uint64{"even": 1, "odd": 2}, ix.CategoryCounts())
	require.Equal(t, uint64(3), ix.TagCounts()["all"])
	_, ok := ix.LookupHash("h2")
	require.False(t, ok)
	idx, ok := ix.LookupHash("h0")
	require.True(t, ok)
	require.Equal(t, uint64(4), idx)

	t.Run("removing an absent record is a no-op", func(t *testing.T) {
		ix.Remove(records[0])
		require.Equal(t, 3, ix.Len())
	})
}
