package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/routes"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/util/log"
)

/*
This file is the main entrypoint for ledger server startup. Startup restores
the hot tier from the snapshot file, if one exists, before serving. Without a
snapshot (after a crash, for instance) the ledger resumes at the end of the
archived range, and category and tag names come from the database. Shutdown
notifies open sessions, drains in-flight requests, stops the background loops,
and writes a fresh snapshot.
*/

////////////////////////////////////////////////////////////////////////////////

const shutdownNotice = "server shutting down"

// Service runs the ledger behind its HTTP interface.
type Service struct{}

// NewService creates a new ledger service.
func NewService() *Service {
	return &Service{}
}

// Start starts the service and blocks until it is interrupted or ctx is
// canceled.
func (s *Service) Start(ctx context.Context, options ...Option) error { //nolint:funlen
	opts, err := readOpts(options...)
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}
	log.Debugf(ctx, "Debug logging enabled")

	dbpath := opts.DatabasePath + "?_journal=WAL&mode=rwc"
	log.Infof(ctx, "Opening database at %s", dbpath)
	db, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database at %s: %w", dbpath, err)
	}
	dir, err := directory.NewSQLDirectory(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to open archive directory: %w", err)
	}

	names, err := directory.NewSQLNames(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load category and tag names: %w", err)
	}

	prov, err := shard.NewObjectProvisioner(opts.StorageProvider, opts.ShardCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create shard provisioner: %w", err)
	}
	ledgerOpts := append([]ledger.Option{ledger.WithNames(names)}, opts.LedgerOpts...)
	l := ledger.NewLedger(dir, prov, ledgerOpts...)

	if opts.SnapshotPath != "" {
		if err := restore(ctx, l, opts.SnapshotPath); err != nil {
			return err
		}
	}

	bgctx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	l.Start(bgctx)

	log.Infof(ctx, "Building routes with allowed origins %+v", opts.AllowedOrigins)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           routes.MakeRoutes(l, opts.AllowedOrigins, opts.SharedKey),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT)
	signal.Notify(sigterm, syscall.SIGTERM)
	defer signal.Stop(sigint)
	defer signal.Stop(sigterm)

	startErr := make(chan error, 1)
	go func() {
		log.Infow(ctx, "Starting server",
			"port", opts.Port,
			"storage", opts.StorageProvider,
			"archives", len(l.Archives()),
			"records", l.TotalCount(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	if opts.PprofAddr != "" {
		pprofServer := startPprof(ctx, opts.PprofAddr)
		defer pprofServer.Close()
	}

	select {
	case <-sigint:
		log.Infof(ctx, "Received SIGINT")
	case <-sigterm:
		log.Infof(ctx, "Received SIGTERM")
	case <-ctx.Done():
		log.Infof(ctx, "Context canceled")
	case err := <-startErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Broadcast(shutdownNotice)

	log.Infof(ctx, "Allowing 10 seconds for existing connections to close")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	errs := make(chan error, 1)
	success := make(chan bool, 1)
	go func() {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs <- err
		} else {
			log.Infof(ctx, "Server stopped")
			success <- true
		}
	}()

	select {
	case <-sigint:
		return errors.New("forceful shutdown on second interrupt")
	case err := <-errs:
		return fmt.Errorf("server shutdown failed: %w", err)
	case <-success:
	}

	stopBackground()
	if opts.SnapshotPath == "" {
		return nil
	}
	if err := l.SnapshotToFile(shutdownCtx, opts.SnapshotPath); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	log.Infow(ctx, "Wrote snapshot", "path", opts.SnapshotPath, "records", l.TotalCount())
	return nil
}

// restore loads the snapshot at path, if any. A consumed snapshot is moved
// aside so that a crash before the next clean shutdown cannot restore stale
// state over newer archives.
func restore(ctx context.Context, l *ledger.Ledger, path string) error {
	restored, err := l.RestoreFromFile(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	if !restored {
		log.Infow(ctx, "No snapshot found, resuming after archived records",
			"path", path,
			"next", l.TotalCount(),
		)
		return nil
	}
	if err := os.Rename(path, path+".restored"); err != nil {
		return fmt.Errorf("failed to retire snapshot: %w", err)
	}
	log.Infow(ctx, "Restored snapshot", "path", path, "records", l.TotalCount())
	return nil
}

func startPprof(ctx context.Context, addr string) *http.Server {
	r := mux.NewRouter()
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof(ctx, "Starting pprof server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf(ctx, "failed to start pprof server: %s", err)
		}
	}()
	return srv
}

func readOpts(opts ...Option) (*Options, error) {
	options := Options{
		Port:           8089,
		DatabasePath:   "newsledger.db",
		SnapshotPath:   "newsledger.snapshot",
		ShardCacheSize: 64,
		AllowedOrigins: []string{
			"http://localhost:5174",
			"http://localhost:5173",
			"http://localhost:8080",
		},
		SharedKey: "",
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.StorageProvider == nil {
		return nil, errors.New("storage provider is required")
	}
	if options.ShardCacheSize <= 0 {
		return nil, errors.New("shard cache size must be positive")
	}
	return &options, nil
}
