package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/shard"
	"golang.org/x/sync/errgroup"
)

/*
The query router answers reads that may span the hot buffer and any number of
archive shards. Callers never learn which tier served a record.

Every multi-tier query is planned against a consistent cut: the directory's
descriptor list together with a hot buffer view whose lowest index equals the
end of that list. Because the scheduler registers a shard before evicting its
records, the two can briefly disagree; when they do the plan is retried. Hot
buffer results are computed inside the view and shard reads happen afterward
with no lock held, which is safe because registered shards are immutable.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrInconsistentTiers is returned when no consistent cut could be taken
// within the configured number of attempts.
var ErrInconsistentTiers = errors.New("tier boundary did not settle")

// Router routes queries across the hot buffer and archive shards.
type Router struct {
	buf  *hotbuf.Buffer
	dir  directory.Directory
	prov shard.Provisioner
	conf config
}

// NewRouter constructs a router over the supplied tiers.
func NewRouter(
	buf *hotbuf.Buffer,
	dir directory.Directory,
	prov shard.Provisioner,
	opts ...Option,
) *Router {
	conf := config{
		concurrency: 8,
		attempts:    16,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Router{buf: buf, dir: dir, prov: prov, conf: conf}
}

// TotalCount returns the number of records ever appended.
func (r *Router) TotalCount() uint64 {
	return r.buf.Next()
}

// Archives returns the shard descriptors in ascending range order.
func (r *Router) Archives() []directory.Descriptor {
	return r.dir.List()
}

// GetByIndex returns the record with global index i.
func (r *Router) GetByIndex(ctx context.Context, i uint64) (news.Record, error) {
	for attempt := 0; attempt < r.conf.attempts; attempt++ {
		loc, err := r.dir.Resolve(i)
		if err != nil {
			return news.Record{}, fmt.Errorf("failed to resolve %d: %w", i, err)
		}
		if !loc.InHotBuffer {
			return r.prov.ReadByIndex(ctx, loc.Shard.Handle, i)
		}
		record, err := r.buf.Get(i)
		if errors.Is(err, hotbuf.ErrEvicted) {
			// archived since we resolved it; the directory now knows where.
			continue
		}
		if err != nil {
			return news.Record{}, fmt.Errorf("record %d: %w", i, err)
		}
		return record, nil
	}
	return news.Record{}, ErrInconsistentTiers
}

// GetByHash returns the first record found with the content hash, checking
// the hot buffer and then shards from newest to oldest.
func (r *Router) GetByHash(ctx context.Context, hash string) (news.Record, error) {
	var record news.Record
	var found bool
	shards, err := r.cut(func(_ []directory.Descriptor, v *hotbuf.View) {
		record, found = v.LookupHash(hash)
	})
	if err != nil {
		return news.Record{}, err
	}
	if found {
		return record, nil
	}
	for i := len(shards) - 1; i >= 0; i-- {
		record, err := r.prov.ReadByHash(ctx, shards[i].Handle, hash)
		if errors.Is(err, news.ErrNotFound) {
			continue
		}
		if err != nil {
			return news.Record{}, fmt.Errorf("failed to read shard %s: %w", shards[i].Handle, err)
		}
		return record, nil
	}
	return news.Record{}, fmt.Errorf("hash %s: %w", hash, news.ErrNotFound)
}

// Latest returns up to n of the most recent records, newest first.
func (r *Router) Latest(ctx context.Context, n int) ([]news.Record, error) {
	n, err := clampLimit(n)
	if err != nil {
		return nil, err
	}
	var result []news.Record
	shards, err := r.cut(func(_ []directory.Descriptor, v *hotbuf.View) {
		result = v.Latest(n)
	})
	if err != nil {
		return nil, err
	}
	for i := len(shards) - 1; i >= 0 && len(result) < n; i-- {
		records, err := r.prov.Latest(ctx, shards[i].Handle, n-len(result))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %s: %w", shards[i].Handle, err)
		}
		result = append(result, records...)
	}
	return result, nil
}

// ByCategory returns a page of records in the category in ascending index
// order. TotalElements counts matches across every tier.
func (r *Router) ByCategory(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	return r.paginate(ctx, offset, limit, selector{
		archived: func(d directory.Descriptor) uint64 { return d.Categories[name] },
		hot:      func(v *hotbuf.View, off, lim int) ([]news.Record, int) { return v.Category(name, off, lim) },
		shard: func(ctx context.Context, handle string, off, lim int) ([]news.Record, error) {
			return r.prov.Category(ctx, handle, name, off, lim)
		},
	})
}

// ByTag returns a page of records carrying the tag in ascending index order.
func (r *Router) ByTag(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	return r.paginate(ctx, offset, limit, selector{
		archived: func(d directory.Descriptor) uint64 { return d.Tags[name] },
		hot:      func(v *hotbuf.View, off, lim int) ([]news.Record, int) { return v.Tag(name, off, lim) },
		shard: func(ctx context.Context, handle string, off, lim int) ([]news.Record, error) {
			return r.prov.Tag(ctx, handle, name, off, lim)
		},
	})
}

// ByTime returns up to limit records created at or after begin, in ascending
// index order.
func (r *Router) ByTime(ctx context.Context, begin uint64, limit int) ([]news.Record, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return nil, err
	}
	var hot []news.Record
	shards, err := r.cut(func(_ []directory.Descriptor, v *hotbuf.View) {
		hot = v.ScanByTime(begin, limit)
	})
	if err != nil {
		return nil, err
	}
	result := []news.Record{}
	for _, d := range shards {
		if len(result) == limit {
			return result, nil
		}
		if d.MaxTime < begin {
			continue
		}
		records, err := r.prov.ScanByTime(ctx, d.Handle, begin, limit-len(result))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %s: %w", d.Handle, err)
		}
		result = append(result, records...)
	}
	remaining := min(limit-len(result), len(hot))
	return append(result, hot[:remaining]...), nil
}

// selector adapts paginate to one kind of secondary key.
type selector struct {
	archived func(d directory.Descriptor) uint64
	hot      func(v *hotbuf.View, offset, limit int) ([]news.Record, int)
	shard    func(ctx context.Context, handle string, offset, limit int) ([]news.Record, error)
}

type shardWindow struct {
	handle string
	offset int
	limit  int
}

func (r *Router) paginate(ctx context.Context, offset, limit int, sel selector) (news.Page, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return news.Page{}, err
	}
	if offset < 0 {
		return news.Page{}, fmt.Errorf("%w: negative offset %d", news.ErrInvalidArgument, offset)
	}
	var (
		archived   int
		hotRecords []news.Record
		hotTotal   int
		windows    []shardWindow
	)
	_, err = r.cut(func(shards []directory.Descriptor, v *hotbuf.View) {
		end := offset + limit
		for _, d := range shards {
			count := int(sel.archived(d))
			lo, hi := archived, archived+count
			archived = hi
			if count == 0 || hi <= offset || lo >= end {
				continue
			}
			local := max(offset-lo, 0)
			windows = append(windows, shardWindow{
				handle: d.Handle,
				offset: local,
				limit:  min(end, hi) - lo - local,
			})
		}
		hotOffset := max(offset-archived, 0)
		hotLimit := end - max(offset, archived)
		hotRecords, hotTotal = sel.hot(v, hotOffset, hotLimit)
	})
	if err != nil {
		return news.Page{}, err
	}

	pages := make([][]news.Record, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.conf.concurrency)
	for i, w := range windows {
		g.Go(func() error {
			records, err := sel.shard(gctx, w.handle, w.offset, w.limit)
			if err != nil {
				return fmt.Errorf("failed to read shard %s: %w", w.handle, err)
			}
			pages[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return news.Page{}, err
	}
	content := []news.Record{}
	for _, page := range pages {
		content = append(content, page...)
	}
	content = append(content, hotRecords...)
	return news.Page{
		Content:       content,
		TotalElements: uint64(archived + hotTotal),
	}, nil
}

// cut takes a consistent cut of the two tiers and calls plan with the
// descriptor list and the hot buffer view. It returns the descriptors the plan
// was made against. Plan is called at most once.
func (r *Router) cut(plan func(shards []directory.Descriptor, v *hotbuf.View)) ([]directory.Descriptor, error) {
	for attempt := 0; attempt < r.conf.attempts; attempt++ {
		shards := r.dir.List()
		var end uint64
		if len(shards) > 0 {
			end = shards[len(shards)-1].End
		}
		consistent := false
		r.buf.Read(func(v *hotbuf.View) {
			if v.Lowest() != end {
				return
			}
			consistent = true
			plan(shards, v)
		})
		if consistent {
			return shards, nil
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Microsecond)
	}
	return nil, ErrInconsistentTiers
}

func clampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be positive, got %d", news.ErrInvalidArgument, limit)
	}
	return min(limit, news.MaxPageSize), nil
}
