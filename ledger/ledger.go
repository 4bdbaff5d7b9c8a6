package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/router"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/session"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/util/log"
)

/*
The ledger is the single entry point to the storage engine and the
notification gateway. It owns the category and tag sets, validates
submissions against them, appends to the hot buffer, and hands new records to
the session registry. Reads are delegated to the query router.

A new ledger's hot buffer starts where the archive directory ends, so a
restart without a snapshot never reissues an archived index. Records that were
only in the hot buffer are lost in that case; names are not, when the name set
is durable.

Writes are serialized by a single mutex, which also makes Snapshot and Restore
stop-the-world with respect to appends. Reads never take it.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrAlreadyExists is returned when adding a category or tag that exists.
var ErrAlreadyExists = errors.New("already exists")

// Ledger is the news ledger.
type Ledger struct {
	writes *sync.Mutex
	names  directory.Names

	buf      *hotbuf.Buffer
	dir      directory.Directory
	sched    *scheduler.Scheduler
	router   *router.Router
	sessions *session.Registry
}

// NewLedger constructs a ledger over the supplied directory and shard
// provisioner. The hot buffer starts empty at the directory's end; call
// Restore before serving to resume from a snapshot.
func NewLedger(dir directory.Directory, prov shard.Provisioner, opts ...Option) *Ledger {
	conf := config{}
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.names == nil {
		conf.names = directory.NewMemNames()
	}
	var lastTime uint64
	if shards := dir.List(); len(shards) > 0 {
		lastTime = shards[len(shards)-1].MaxTime
	}
	bufferOpts := append([]hotbuf.Option{hotbuf.WithStart(dir.End(), lastTime)}, conf.bufferOpts...)
	buf := hotbuf.New(bufferOpts...)
	return &Ledger{
		writes:   &sync.Mutex{},
		names:    conf.names,
		buf:      buf,
		dir:      dir,
		sched:    scheduler.NewScheduler(buf, dir, prov, conf.schedulerOpts...),
		router:   router.NewRouter(buf, dir, prov, conf.routerOpts...),
		sessions: session.NewRegistry(conf.sessionOpts...),
	}
}

// Start launches the archival scheduler and the session dispatcher. They run
// until the context is canceled.
func (l *Ledger) Start(ctx context.Context) {
	l.sessions.Start(ctx)
	go l.sched.Run(ctx)
}

// AddCategory adds a category.
func (l *Ledger) AddCategory(ctx context.Context, name string) error {
	if err := l.addName(ctx, directory.KindCategory, name); err != nil {
		return err
	}
	log.Infof(ctx, "Added category %q", name)
	return nil
}

// AddTag adds a tag.
func (l *Ledger) AddTag(ctx context.Context, name string) error {
	if err := l.addName(ctx, directory.KindTag, name); err != nil {
		return err
	}
	log.Infof(ctx, "Added tag %q", name)
	return nil
}

// Categories returns the sorted category names.
func (l *Ledger) Categories() []string {
	return l.names.List(directory.KindCategory)
}

// Tags returns the sorted tag names.
func (l *Ledger) Tags() []string {
	return l.names.List(directory.KindTag)
}

// AddRecord validates the submission, appends it, and notifies sessions. A
// CapacityExceeded rejection triggers an immediate archival run.
func (l *Ledger) AddRecord(ctx context.Context, s news.Submission) (news.Record, error) {
	if err := l.validate(s); err != nil {
		rejectedRecords.WithLabelValues("invalid").Inc()
		return news.Record{}, err
	}
	l.writes.Lock()
	record, err := l.buf.Append(s)
	l.writes.Unlock()
	if err != nil {
		if errors.Is(err, hotbuf.ErrCapacityExceeded) {
			rejectedRecords.WithLabelValues("capacity").Inc()
			log.Warnf(ctx, "Hot buffer full, triggering archival: %s", err)
			l.sched.Trigger()
		}
		return news.Record{}, err
	}
	appendedRecords.Inc()
	l.sessions.OnRecordAppended(record)
	log.Debugw(ctx, "Appended record", "index", record.Index, "category", record.Category, "provider", record.Provider)
	return record, nil
}

// TotalCount returns the number of records ever appended.
func (l *Ledger) TotalCount() uint64 {
	return l.router.TotalCount()
}

// GetByIndex returns the record at global index i.
func (l *Ledger) GetByIndex(ctx context.Context, i uint64) (news.Record, error) {
	return l.router.GetByIndex(ctx, i)
}

// GetByHash returns the first record found with the content hash.
func (l *Ledger) GetByHash(ctx context.Context, hash string) (news.Record, error) {
	return l.router.GetByHash(ctx, hash)
}

// Latest returns up to n of the newest records, newest first.
func (l *Ledger) Latest(ctx context.Context, n int) ([]news.Record, error) {
	return l.router.Latest(ctx, n)
}

// ByCategory returns a page of records in a known category.
func (l *Ledger) ByCategory(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	if !l.names.Has(directory.KindCategory, name) {
		return news.Page{}, fmt.Errorf("category %q: %w", name, news.ErrNotFound)
	}
	return l.router.ByCategory(ctx, name, offset, limit)
}

// ByTag returns a page of records carrying a known tag.
func (l *Ledger) ByTag(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	if !l.names.Has(directory.KindTag, name) {
		return news.Page{}, fmt.Errorf("tag %q: %w", name, news.ErrNotFound)
	}
	return l.router.ByTag(ctx, name, offset, limit)
}

// ByTime returns up to limit records created at or after begin.
func (l *Ledger) ByTime(ctx context.Context, begin uint64, limit int) ([]news.Record, error) {
	return l.router.ByTime(ctx, begin, limit)
}

// Archives returns the archive shard descriptors in range order.
func (l *Ledger) Archives() []directory.Descriptor {
	return l.router.Archives()
}

// TaskStatus reports on the archival scheduler.
func (l *Ledger) TaskStatus() scheduler.Status {
	return l.sched.Status()
}

// RunArchival performs an archival run immediately.
func (l *Ledger) RunArchival(ctx context.Context) (bool, error) {
	return l.sched.RunOnce(ctx)
}

// OpenSession opens a notification session for the client.
func (l *Ledger) OpenSession(ctx context.Context, client string, filter session.Filter) (session.Info, error) {
	for _, category := range filter.Categories {
		if !l.names.Has(directory.KindCategory, category) {
			return session.Info{}, fmt.Errorf("%w: unknown category %q", news.ErrInvalidArgument, category)
		}
	}
	for _, tag := range filter.Tags {
		if !l.names.Has(directory.KindTag, tag) {
			return session.Info{}, fmt.Errorf("%w: unknown tag %q", news.ErrInvalidArgument, tag)
		}
	}
	return l.sessions.Open(ctx, client, filter)
}

// CloseSession closes a notification session.
func (l *Ledger) CloseSession(ctx context.Context, id string) (session.Info, error) {
	return l.sessions.Close(ctx, id)
}

// Poll acknowledges a session's messages up to lastSeen and returns the rest.
func (l *Ledger) Poll(id string, lastSeen uint64) (session.Batch, error) {
	return l.sessions.Poll(id, lastSeen)
}

// Sessions lists open sessions.
func (l *Ledger) Sessions() []session.Info {
	return l.sessions.List()
}

// Broadcast sends a text notice to every open session.
func (l *Ledger) Broadcast(text string) {
	l.sessions.Broadcast(session.Text{Text: text})
}

func (l *Ledger) validate(s news.Submission) error {
	if s.Provider == "" {
		return fmt.Errorf("%w: provider is required", news.ErrInvalidArgument)
	}
	if !l.names.Has(directory.KindCategory, s.Category) {
		return fmt.Errorf("%w: unknown category %q", news.ErrInvalidArgument, s.Category)
	}
	for _, tag := range s.Tags {
		if !l.names.Has(directory.KindTag, tag) {
			return fmt.Errorf("%w: unknown tag %q", news.ErrInvalidArgument, tag)
		}
	}
	return nil
}

func (l *Ledger) addName(ctx context.Context, kind directory.Kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s name is required", news.ErrInvalidArgument, kind)
	}
	added, err := l.names.Add(ctx, kind, name)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%s %q: %w", kind, name, ErrAlreadyExists)
	}
	return nil
}
