package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

/*
sqlDirectory persists descriptors to a SQL database (sqlite in practice) and
keeps the ordered list in memory for binary-search resolution. The full list is
loaded and validated at construction, so a corrupt catalog is detected before
the ledger serves any request. Register writes through: the row is committed
before the in-memory list changes, so a descriptor visible to readers is always
durable, and the database write happens outside the lock readers take.

Indices and timestamps are stored as signed 64-bit integers, which the sqlite
driver requires.
*/

////////////////////////////////////////////////////////////////////////////////

type sqlDirectory struct {
	catalog
	db *sql.DB
}

// NewSQLDirectory migrates the database, loads every persisted descriptor, and
// returns a directory backed by it.
func NewSQLDirectory(ctx context.Context, db *sql.DB) (Directory, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	d := &sqlDirectory{
		catalog: newCatalog(),
		db:      db,
	}
	if err := d.load(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqlDirectory) load(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `
	select handle, start_index, end_index, record_count, min_time, max_time, categories, tags, created_at
	from shards order by start_index asc`)
	if err != nil {
		return fmt.Errorf("failed to load shards: %w", err)
	}
	defer rows.Close()
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for rows.Next() {
		var (
			desc                       Descriptor
			start, end, count          int64
			minTime, maxTime           int64
			categories, tags, creation string
		)
		if err := rows.Scan(
			&desc.Handle, &start, &end, &count, &minTime, &maxTime, &categories, &tags, &creation,
		); err != nil {
			return fmt.Errorf("failed to scan shard: %w", err)
		}
		desc.Start, desc.End, desc.Count = uint64(start), uint64(end), uint64(count)
		desc.MinTime, desc.MaxTime = uint64(minTime), uint64(maxTime)
		if err := json.Unmarshal([]byte(categories), &desc.Categories); err != nil {
			return fmt.Errorf("failed to decode category summary for %s: %w", desc.Handle, err)
		}
		if err := json.Unmarshal([]byte(tags), &desc.Tags); err != nil {
			return fmt.Errorf("failed to decode tag summary for %s: %w", desc.Handle, err)
		}
		if desc.CreatedAt, err = time.Parse(time.RFC3339Nano, creation); err != nil {
			return fmt.Errorf("failed to parse creation time for %s: %w", desc.Handle, err)
		}
		if err := d.check(desc); err != nil {
			return fmt.Errorf("persisted directory is corrupt: %w", err)
		}
		d.shards = append(d.shards, desc)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shards: %w", err)
	}
	return nil
}

// Register validates the descriptor, commits the row, and only then takes the
// write lock to append it, so readers never wait on the database. The archival
// scheduler is the only writer; the re-check under the lock catches a
// violation of that, and the row is removed again.
func (d *sqlDirectory) Register(ctx context.Context, desc Descriptor) error {
	d.mtx.RLock()
	err := d.check(desc)
	d.mtx.RUnlock()
	if err != nil {
		return err
	}
	categories, err := json.Marshal(desc.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode category summary: %w", err)
	}
	tags, err := json.Marshal(desc.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tag summary: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `
	insert into shards (handle, start_index, end_index, record_count, min_time, max_time, categories, tags, created_at)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		desc.Handle,
		int64(desc.Start),
		int64(desc.End),
		int64(desc.Count),
		int64(desc.MinTime),
		int64(desc.MaxTime),
		string(categories),
		string(tags),
		desc.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to store shard descriptor: %w", err)
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()
	if err := d.check(desc); err != nil {
		if _, derr := d.db.ExecContext(ctx, "delete from shards where handle = $1", desc.Handle); derr != nil {
			return fmt.Errorf("%w (failed to remove stored descriptor: %s)", err, derr)
		}
		return err
	}
	d.shards = append(d.shards, desc)
	return nil
}

func (d *sqlDirectory) Resolve(i uint64) (Location, error) {
	return d.resolve(i), nil
}

func (d *sqlDirectory) List() []Descriptor {
	return d.list()
}
