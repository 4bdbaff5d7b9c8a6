package router_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/router"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/storage"
)

type tiers struct {
	buf   *hotbuf.Buffer
	dir   directory.Directory
	prov  shard.Provisioner
	clock uint64
	r     *router.Router
}

func newTiers(t *testing.T) *tiers {
	t.Helper()
	prov, err := shard.NewObjectProvisioner(storage.NewMemStore(), 4)
	require.NoError(t, err)
	tr := &tiers{dir: directory.NewMemDirectory(), prov: prov, clock: 1000}
	tr.buf = hotbuf.New(hotbuf.WithClock(func() time.Time {
		return time.Unix(0, int64(tr.clock))
	}))
	tr.r = router.NewRouter(tr.buf, tr.dir, tr.prov)
	return tr
}

func (tr *tiers) append(t *testing.T, s news.Submission) news.Record {
	t.Helper()
	r, err := tr.buf.Append(s)
	require.NoError(t, err)
	tr.clock += 10
	return r
}

func (tr *tiers) fill(t *testing.T, n int) []news.Record {
	t.Helper()
	result := make([]news.Record, 0, n)
	for i := 0; i < n; i++ {
		category := []string{"sports", "politics", "weather"}[i%3]
		tags := []string{"all"}
		if i%2 == 0 {
			tags = append(tags, "even")
		}
		result = append(result, tr.append(t, news.Submission{
			Provider: "wire",
			Category: category,
			Tags:     tags,
			Title:    fmt.Sprintf("story %d", i),
		}))
	}
	return result
}

// archive moves the next n hot records into a new shard.
func (tr *tiers) archive(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	lowest := tr.buf.Lowest()
	records, err := tr.buf.Slice(lowest, lowest+uint64(n))
	require.NoError(t, err)
	handle, err := tr.prov.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, tr.prov.Write(ctx, handle, records))
	desc, err := directory.NewDescriptor(handle, records)
	require.NoError(t, err)
	require.NoError(t, tr.dir.Register(ctx, desc))
	_, err = tr.buf.EvictPrefix(desc.End)
	require.NoError(t, err)
}

func filter(records []news.Record, f func(news.Record) bool) []news.Record {
	result := []news.Record{}
	for _, r := range records {
		if f(r) {
			result = append(result, r)
		}
	}
	return result
}

func TestGetByIndexIsTierTransparent(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	records := tr.fill(t, 25)
	check := func() {
		for _, expected := range records {
			actual, err := tr.r.GetByIndex(ctx, expected.Index)
			require.NoError(t, err)
			require.Equal(t, expected, actual)
		}
	}
	check()
	for _, n := range []int{7, 1, 10} {
		tr.archive(t, n)
		check()
	}
	assert.Equal(t, uint64(25), tr.r.TotalCount())
	assert.Equal(t, 7, tr.buf.Size())
	assert.Len(t, tr.r.Archives(), 3)

	_, err := tr.r.GetByIndex(ctx, 25)
	require.ErrorIs(t, err, news.ErrNotFound)
}

func TestArchivalScenario(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	records := tr.fill(t, 5)
	tr.archive(t, 3)

	archives := tr.r.Archives()
	require.Len(t, archives, 1)
	assert.Equal(t, uint64(0), archives[0].Start)
	assert.Equal(t, uint64(3), archives[0].End)
	assert.Equal(t, uint64(5), tr.r.TotalCount())
	assert.Equal(t, uint64(3), tr.buf.Lowest())

	record, err := tr.r.GetByIndex(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, records[1], record)
}

func TestPagination(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	records := tr.fill(t, 40)
	tr.archive(t, 9)
	tr.archive(t, 5)
	tr.archive(t, 12)

	queries := []struct {
		assertion string
		query     func(offset, limit int) (news.Page, error)
		expected  []news.Record
	}{
		{
			"category",
			func(o, l int) (news.Page, error) { return tr.r.ByCategory(ctx, "politics", o, l) },
			filter(records, func(r news.Record) bool { return r.Category == "politics" }),
		},
		{
			"tag",
			func(o, l int) (news.Page, error) { return tr.r.ByTag(ctx, "even", o, l) },
			filter(records, func(r news.Record) bool { return r.HasTag("even") }),
		},
		{
			"tag on every record",
			func(o, l int) (news.Page, error) { return tr.r.ByTag(ctx, "all", o, l) },
			records,
		},
		{
			"unknown category",
			func(o, l int) (news.Page, error) { return tr.r.ByCategory(ctx, "finance", o, l) },
			[]news.Record{},
		},
	}
	for _, q := range queries {
		for _, limit := range []int{1, 2, 3, 7, 100} {
			t.Run(fmt.Sprintf("%s limit %d", q.assertion, limit), func(t *testing.T) {
				collected := []news.Record{}
				for offset := 0; ; offset += limit {
					page, err := q.query(offset, limit)
					require.NoError(t, err)
					require.Equal(t, uint64(len(q.expected)), page.TotalElements)
					require.LessOrEqual(t, len(page.Content), limit)
					if offset >= len(q.expected) {
						require.Empty(t, page.Content)
						break
					}
					collected = append(collected, page.Content...)
				}
				require.Equal(t, q.expected, collected)
			})
		}
	}

	t.Run("offset far past the end", func(t *testing.T) {
		page, err := tr.r.ByCategory(ctx, "sports", 1000, 10)
		require.NoError(t, err)
		assert.Empty(t, page.Content)
		assert.Equal(t, uint64(14), page.TotalElements)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		page, err := tr.r.ByTag(ctx, "all", 0, 1000)
		require.NoError(t, err)
		assert.Len(t, page.Content, 40)
	})
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	tr.fill(t, 3)
	cases := []struct {
		assertion string
		call      func() error
	}{
		{"zero limit", func() error { _, err := tr.r.ByCategory(ctx, "sports", 0, 0); return err }},
		{"negative limit", func() error { _, err := tr.r.ByTag(ctx, "all", 0, -1); return err }},
		{"negative offset", func() error { _, err := tr.r.ByTag(ctx, "all", -1, 5); return err }},
		{"zero latest", func() error { _, err := tr.r.Latest(ctx, 0); return err }},
		{"zero time scan", func() error { _, err := tr.r.ByTime(ctx, 0, 0); return err }},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.ErrorIs(t, c.call(), news.ErrInvalidArgument)
		})
	}
}

func TestByTime(t *testing.T) {
	ctx := context.Background()
	const T = uint64(5000)
	for _, archived := range []int{0, 1, 2, 4} {
		t.Run(fmt.Sprintf("%d archived", archived), func(t *testing.T) {
			tr := newTiers(t)
			var records []news.Record
			for i, ts := range []uint64{T - 1, T, T + 1, T + 2} {
				tr.clock = ts
				records = append(records, tr.append(t, news.Submission{Category: "c", Title: fmt.Sprint(i)}))
			}
			if archived > 0 {
				tr.archive(t, archived)
			}
			result, err := tr.r.ByTime(ctx, T, 10)
			require.NoError(t, err)
			assert.Equal(t, records[1:], result)

			result, err = tr.r.ByTime(ctx, T, 2)
			require.NoError(t, err)
			assert.Equal(t, records[1:3], result)

			result, err = tr.r.ByTime(ctx, T+100, 10)
			require.NoError(t, err)
			assert.Empty(t, result)
		})
	}
}

func TestGetByHash(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	first := tr.append(t, news.Submission{Category: "c", Title: "dup"})
	unique := tr.append(t, news.Submission{Category: "c", Title: "unique"})
	tr.archive(t, 2)
	again := tr.append(t, news.Submission{Category: "c", Title: "dup"})
	require.Equal(t, first.Hash, again.Hash)

	cases := []struct {
		assertion string
		hash      string
		expected  uint64
		err       error
	}{
		{"hot tier wins", first.Hash, again.Index, nil},
		{"archived only", unique.Hash, unique.Index, nil},
		{"missing", "deadbeef", 0, news.ErrNotFound},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			record, err := tr.r.GetByHash(ctx, c.hash)
			if c.err != nil {
				require.ErrorIs(t, err, c.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expected, record.Index)
		})
	}
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	records := tr.fill(t, 12)
	tr.archive(t, 4)
	tr.archive(t, 5)

	cases := []struct {
		assertion string
		n         int
		expected  []uint64
	}{
		{"hot only", 2, []uint64{11, 10}},
		{"spans one shard", 5, []uint64{11, 10, 9, 8, 7}},
		{"spans every shard", 11, []uint64{11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		{"more than exist", 50, []uint64{11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			result, err := tr.r.Latest(ctx, c.n)
			require.NoError(t, err)
			indices := make([]uint64, len(result))
			for i, r := range result {
				indices[i] = r.Index
				assert.Equal(t, records[r.Index], r)
			}
			assert.Equal(t, c.expected, indices)
		})
	}
}

func TestReadsDuringArchival(t *testing.T) {
	ctx := context.Background()
	tr := newTiers(t)
	records := tr.fill(t, 60)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			lowest := tr.buf.Lowest()
			batch, err := tr.buf.Slice(lowest, lowest+5)
			if err != nil {
				return
			}
			handle, err := tr.prov.Create(ctx)
			if err != nil {
				return
			}
			if err := tr.prov.Write(ctx, handle, batch); err != nil {
				return
			}
			desc, err := directory.NewDescriptor(handle, batch)
			if err != nil {
				return
			}
			if err := tr.dir.Register(ctx, desc); err != nil {
				return
			}
			if _, err := tr.buf.EvictPrefix(desc.End); err != nil {
				return
			}
		}
	}()
	expected := filter(records, func(r news.Record) bool { return r.Category == "weather" })
	for {
		select {
		case <-done:
			assert.Equal(t, 10, len(tr.r.Archives()))
			return
		default:
		}
		page, err := tr.r.ByCategory(ctx, "weather", 0, 100)
		require.NoError(t, err)
		require.Equal(t, expected, page.Content)
		record, err := tr.r.GetByIndex(ctx, 17)
		require.NoError(t, err)
		require.Equal(t, records[17], record)
	}
}
