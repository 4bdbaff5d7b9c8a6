package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/util/log"
)

/*
A snapshot captures everything the ledger holds in memory: the category and tag
sets and the hot buffer. Archive shard descriptors are durable on their own and
are not part of it. Restored names are merged into the ledger's name set, which
may already hold names loaded from durable storage. On restore the buffer is reconciled against the directory:
if the process stopped after a shard was registered but before the snapshot
reflected the eviction, the archived prefix is evicted again. A snapshot that
starts beyond the directory's end cannot be reconciled.
*/

////////////////////////////////////////////////////////////////////////////////

const snapshotVersion = 1

type snapshot struct {
	Version    int          `json:"version"`
	Categories []string     `json:"categories"`
	Tags       []string     `json:"tags"`
	Buffer     hotbuf.State `json:"buffer"`
}

// Snapshot serializes the ledger's in-memory state. Appends are blocked while
// it is captured.
func (l *Ledger) Snapshot(ctx context.Context) ([]byte, error) {
	l.writes.Lock()
	state := snapshot{
		Version:    snapshotVersion,
		Categories: l.Categories(),
		Tags:       l.Tags(),
		Buffer:     l.buf.Snapshot(),
	}
	l.writes.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	defer enc.Close()
	blob := enc.EncodeAll(data, nil)
	log.Infow(ctx, "Captured snapshot",
		"lowest", state.Buffer.Lowest,
		"next", state.Buffer.Next,
		"records", len(state.Buffer.Records),
		"bytes", len(blob),
	)
	return blob, nil
}

// Restore replaces the ledger's in-memory state with a snapshot. It must
// complete before any request is served.
func (l *Ledger) Restore(ctx context.Context, blob []byte) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	state := snapshot{}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if state.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", state.Version)
	}

	l.writes.Lock()
	defer l.writes.Unlock()
	end := l.dir.End()
	switch {
	case state.Buffer.Lowest > end:
		return fmt.Errorf("%w: snapshot starts at %d but archives end at %d",
			directory.ErrInvariantViolation, state.Buffer.Lowest, end)
	case end > state.Buffer.Next:
		return fmt.Errorf("%w: archives end at %d beyond snapshot's next index %d",
			directory.ErrInvariantViolation, end, state.Buffer.Next)
	}
	if err := l.buf.Restore(state.Buffer); err != nil {
		return fmt.Errorf("failed to restore hot buffer: %w", err)
	}
	evicted, err := l.buf.EvictPrefix(end)
	if err != nil {
		return fmt.Errorf("failed to reconcile hot buffer: %w", err)
	}

	for _, name := range state.Categories {
		if _, err := l.names.Add(ctx, directory.KindCategory, name); err != nil {
			return fmt.Errorf("failed to restore category: %w", err)
		}
	}
	for _, name := range state.Tags {
		if _, err := l.names.Add(ctx, directory.KindTag, name); err != nil {
			return fmt.Errorf("failed to restore tag: %w", err)
		}
	}

	log.Infow(ctx, "Restored snapshot",
		"lowest", l.buf.Lowest(),
		"next", l.buf.Next(),
		"reconciled", evicted,
		"categories", len(state.Categories),
		"tags", len(state.Tags),
	)
	return nil
}

// SnapshotToFile writes a snapshot to path, replacing any existing file
// atomically.
func (l *Ledger) SnapshotToFile(ctx context.Context, path string) error {
	blob, err := l.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install snapshot: %w", err)
	}
	return nil
}

// RestoreFromFile restores from a snapshot at path. It returns false without
// error if no snapshot exists.
func (l *Ledger) RestoreFromFile(ctx context.Context, path string) (bool, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := l.Restore(ctx, blob); err != nil {
		return false, err
	}
	return true, nil
}
