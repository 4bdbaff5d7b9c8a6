package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/storage"
)

// TestLedger returns a ledger over in-memory storage and an in-memory
// directory, with the directory returned for inspection.
func TestLedger(tb testing.TB, opts ...Option) (*Ledger, directory.Directory) {
	tb.Helper()
	dir := directory.NewMemDirectory()
	prov, err := shard.NewObjectProvisioner(storage.NewMemStore(), 16)
	require.NoError(tb, err)
	return NewLedger(dir, prov, opts...), dir
}
