package service

import (
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/storage"
)

// Option is a functional option for the ledger service.
type Option func(*Options)

// Options contains options for the ledger service.
type Options struct {
	Port            int
	DatabasePath    string
	SnapshotPath    string
	StorageProvider storage.Provider
	ShardCacheSize  int
	AllowedOrigins  []string
	SharedKey       string
	PprofAddr       string
	LedgerOpts      []ledger.Option
}

// WithPort sets the port to listen on.
func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithDatabasePath sets the path of the sqlite database holding the archive
// directory.
func WithDatabasePath(path string) Option {
	return func(opts *Options) {
		opts.DatabasePath = path
	}
}

// WithSnapshotPath sets the file the hot tier is snapshotted to on shutdown
// and restored from on startup.
func WithSnapshotPath(path string) Option {
	return func(opts *Options) {
		opts.SnapshotPath = path
	}
}

// WithStorageProvider sets the storage provider for archive shards.
func WithStorageProvider(provider storage.Provider) Option {
	return func(opts *Options) {
		opts.StorageProvider = provider
	}
}

// WithShardCacheSize sets the number of decoded shards kept in memory.
func WithShardCacheSize(n int) Option {
	return func(opts *Options) {
		opts.ShardCacheSize = n
	}
}

// WithAllowedOrigins sets the allowed CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(opts *Options) {
		opts.AllowedOrigins = origins
	}
}

// WithSharedKey sets the shared key required for writes.
func WithSharedKey(key string) Option {
	return func(opts *Options) {
		opts.SharedKey = key
	}
}

// WithPprofAddr enables a pprof server on the supplied address.
func WithPprofAddr(addr string) Option {
	return func(opts *Options) {
		opts.PprofAddr = addr
	}
}

// WithLedgerOpts passes options through to the ledger.
func WithLedgerOpts(opts ...ledger.Option) Option {
	return func(o *Options) {
		o.LedgerOpts = append(o.LedgerOpts, opts...)
	}
}
