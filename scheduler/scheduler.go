package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/shard"
	"github.com/wkalt/newsledger/util/log"
)

/*
The archival scheduler moves a prefix of the hot buffer into a freshly
provisioned archive shard whenever the buffer grows beyond a threshold. A run
goes Idle -> Transferring -> Idle and either completes fully or changes
nothing:

 1. choose the prefix to move (batch size and retention window);
 2. create a shard through the provisioner;
 3. bulk-write the prefix into it;
 4. register the shard in the directory;
 5. evict the prefix from the hot buffer.

Registration precedes eviction, so every index stays resolvable to exactly one
tier while a run is in progress. Steps 2 and 3 may block on the network and run
without holding any lock the read path needs. If step 2 or 3 fails, the buffer
and directory are untouched and the run is retried on the next tick. If the
directory reports an invariant violation the scheduler halts: later ticks and
triggers are no-ops and the condition is surfaced through Status.

A buffer that has reached its hard ceiling rejects writes until a run moves
something out, so such a run ignores the threshold and shrinks the retention
window if it would otherwise keep every record.
*/

////////////////////////////////////////////////////////////////////////////////

// State is the scheduler's run state.
type State int

const (
	// Idle means no transfer is in progress.
	Idle State = iota
	// Transferring means a run is moving records into a shard.
	Transferring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transferring:
		return "transferring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a point-in-time report on the scheduler.
type Status struct {
	Running   bool      `json:"running"`
	LastError string    `json:"lastError,omitempty"`
	Halted    bool      `json:"halted"`
	LastRun   time.Time `json:"lastRun"`
	Runs      uint64    `json:"runs"`
	Failures  uint64    `json:"failures"`
	Archived  uint64    `json:"archived"`
}

// Scheduler moves records from the hot buffer into archive shards.
type Scheduler struct {
	buf  *hotbuf.Buffer
	dir  directory.Directory
	prov shard.Provisioner
	conf config

	running atomic.Bool
	trigger chan struct{}

	mtx    *sync.Mutex
	status Status
	runID  uint64
}

// NewScheduler constructs a scheduler over the supplied tiers.
func NewScheduler(
	buf *hotbuf.Buffer,
	dir directory.Directory,
	prov shard.Provisioner,
	opts ...Option,
) *Scheduler {
	conf := config{
		threshold: 10000,
		interval:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Scheduler{
		buf:     buf,
		dir:     dir,
		prov:    prov,
		conf:    conf,
		trigger: make(chan struct{}, 1),
		mtx:     &sync.Mutex{},
	}
}

// State returns the current run state.
func (s *Scheduler) State() State {
	if s.running.Load() {
		return Transferring
	}
	return Idle
}

// Status returns a copy of the scheduler's status.
func (s *Scheduler) Status() Status {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	status := s.status
	status.Running = s.running.Load()
	return status
}

// Trigger requests a run without waiting for the next tick. It never blocks;
// triggers arriving while one is already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes runs on the configured interval and on Trigger until the
// context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.conf.interval)
	defer ticker.Stop()
	log.Infow(ctx, "Archival scheduler started",
		"threshold", s.conf.threshold,
		"batch", s.conf.batchSize,
		"retention", s.conf.retention,
		"interval", s.conf.interval,
	)
	for {
		select {
		case <-ctx.Done():
			log.Infof(ctx, "Archival scheduler stopped")
			return
		case <-ticker.C:
		case <-s.trigger:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrHalted) {
				continue
			}
			log.Errorf(ctx, "Archival run failed: %s", err)
		}
	}
}

// RunOnce performs a single run. It returns true if records were moved. A
// call made while another run is transferring returns immediately with false.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if s.halted() {
		return false, ErrHalted
	}
	if !s.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.running.Store(false)

	count := s.prefixLength()
	if count == 0 {
		return false, nil
	}

	s.mtx.Lock()
	s.runID++
	ctx = log.AddTags(ctx, "run", s.runID)
	s.mtx.Unlock()

	start := time.Now()
	n, err := s.transfer(ctx, count)
	archivalDuration.Observe(time.Since(start).Seconds())
	s.record(err, n, start)
	if err != nil {
		archivalRuns.WithLabelValues(outcome(err)).Inc()
		return false, err
	}
	archivalRuns.WithLabelValues("success").Inc()
	archivedRecords.Add(float64(n))
	return true, nil
}

// prefixLength returns the number of records the next run moves. A buffer at
// its hard ceiling is relieved regardless of the threshold, and the retention
// window then keeps at most all but one record.
func (s *Scheduler) prefixLength() int {
	size := s.buf.Size()
	full := s.buf.Full()
	if size <= s.conf.threshold && !full {
		return 0
	}
	retention := s.conf.retention
	if full {
		retention = min(retention, size-1)
	}
	count := size - retention
	if s.conf.batchSize > 0 {
		count = min(count, s.conf.batchSize)
	}
	return max(count, 0)
}

func (s *Scheduler) transfer(ctx context.Context, count int) (int, error) {
	lowest := s.buf.Lowest()
	if end := s.dir.End(); end != lowest {
		return 0, fmt.Errorf("%w: directory ends at %d but hot buffer starts at %d",
			directory.ErrInvariantViolation, end, lowest)
	}
	records, err := s.buf.Slice(lowest, lowest+uint64(count))
	if err != nil {
		return 0, fmt.Errorf("failed to read prefix: %w", err)
	}

	handle, err := s.prov.Create(ctx)
	if err != nil {
		return 0, NewProvisioningError(err)
	}
	ctx = log.AddTags(ctx, "shard", handle)

	if err := s.prov.Write(ctx, handle, records); err != nil {
		s.discard(ctx, handle)
		return 0, NewTransferError(handle, err)
	}
	desc, err := directory.NewDescriptor(handle, records)
	if err != nil {
		s.discard(ctx, handle)
		return 0, err
	}
	if err := s.dir.Register(ctx, desc); err != nil {
		s.discard(ctx, handle)
		if errors.Is(err, directory.ErrInvariantViolation) {
			return 0, err
		}
		return 0, NewTransferError(handle, err)
	}
	evicted, err := s.buf.EvictPrefix(desc.End)
	if err != nil {
		return 0, fmt.Errorf("%w: shard %s registered but eviction failed: %w",
			directory.ErrInvariantViolation, desc, err)
	}
	log.Infow(ctx, "Archived records",
		"start", desc.Start,
		"end", desc.End,
		"evicted", evicted,
	)
	return len(records), nil
}

func (s *Scheduler) discard(ctx context.Context, handle string) {
	if err := s.prov.Discard(ctx, handle); err != nil {
		log.Warnf(ctx, "Failed to discard orphaned shard %s: %s", handle, err)
	}
}

func (s *Scheduler) record(err error, archived int, at time.Time) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.status.Runs++
	s.status.LastRun = at
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		if errors.Is(err, directory.ErrInvariantViolation) {
			s.status.Halted = true
		}
		return
	}
	s.status.LastError = ""
	s.status.Archived += uint64(archived)
}

func (s *Scheduler) halted() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.status.Halted
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ProvisioningError{}):
		return "provisioning_error"
	case errors.Is(err, TransferError{}):
		return "transfer_error"
	case errors.Is(err, directory.ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "error"
	}
}
