package directory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

/*
The vocabulary of category and tag names lives alongside the shard catalog.
Records in the hot buffer survive a restart only through the snapshot, but the
names they refer to must survive any restart: a ledger that lost its
categories would reject every write. Names are loaded once at construction and
written through on Add.
*/

////////////////////////////////////////////////////////////////////////////////

// Kind distinguishes category names from tag names.
type Kind string

const (
	// KindCategory is the kind of category names.
	KindCategory Kind = "category"
	// KindTag is the kind of tag names.
	KindTag Kind = "tag"
)

// Names is the durable set of category and tag names.
type Names interface {
	// Add records a name. It returns false if the name already exists.
	Add(ctx context.Context, kind Kind, name string) (bool, error)
	// Has reports whether a name exists.
	Has(kind Kind, name string) bool
	// List returns the names of a kind in ascending order.
	List(kind Kind) []string
}

type vocabulary struct {
	mtx   *sync.RWMutex
	names map[Kind]map[string]struct{}
}

func newVocabulary() vocabulary {
	return vocabulary{
		mtx: &sync.RWMutex{},
		names: map[Kind]map[string]struct{}{
			KindCategory: {},
			KindTag:      {},
		},
	}
}

func (v *vocabulary) Has(kind Kind, name string) bool {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	_, ok := v.names[kind][name]
	return ok
}

// insert adds a name to the in-memory set and reports whether it was new.
func (v *vocabulary) insert(kind Kind, name string) (bool, error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	set, ok := v.names[kind]
	if !ok {
		return false, fmt.Errorf("unknown name kind %q", kind)
	}
	if _, ok := set[name]; ok {
		return false, nil
	}
	set[name] = struct{}{}
	return true, nil
}

func (v *vocabulary) List(kind Kind) []string {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	result := maps.Keys(v.names[kind])
	slices.Sort(result)
	return result
}

type memNames struct {
	vocabulary
}

// NewMemNames returns an empty in-memory name set. It is only suitable for
// usage in testing.
func NewMemNames() Names {
	return &memNames{vocabulary: newVocabulary()}
}

func (m *memNames) Add(_ context.Context, kind Kind, name string) (bool, error) {
	return m.insert(kind, name)
}

type sqlNames struct {
	vocabulary
	db *sql.DB
}

// NewSQLNames migrates the database and loads every persisted name.
func NewSQLNames(ctx context.Context, db *sql.DB) (Names, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	n := &sqlNames{vocabulary: newVocabulary(), db: db}
	rows, err := db.QueryContext(ctx, "select kind, name from names")
	if err != nil {
		return nil, fmt.Errorf("failed to load names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		if _, err := n.insert(Kind(kind), name); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate names: %w", err)
	}
	return n, nil
}

// Add inserts the row first; the primary key arbitrates concurrent adds of
// the same name, and the in-memory set only changes once the row is durable.
func (n *sqlNames) Add(ctx context.Context, kind Kind, name string) (bool, error) {
	if kind != KindCategory && kind != KindTag {
		return false, fmt.Errorf("unknown name kind %q", kind)
	}
	if n.Has(kind, name) {
		return false, nil
	}
	result, err := n.db.ExecContext(ctx, `
	insert into names (kind, name, created_at) values ($1, $2, $3)
	on conflict (kind, name) do nothing`,
		string(kind), name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("failed to store %s %q: %w", kind, name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to store %s %q: %w", kind, name, err)
	}
	if _, err := n.insert(kind, name); err != nil {
		return false, err
	}
	return affected > 0, nil
}
