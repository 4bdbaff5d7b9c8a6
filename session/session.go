package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/util/log"
	"golang.org/x/exp/maps"
)

/*
The session registry implements push notifications over a request/response
transport. A client opens a session, then repeatedly polls it with the highest
sequence number it has seen. Each session owns a bounded FIFO of sequenced
messages; sequence numbers start at 1 and are never reused within a session.

Polling with last_seen acknowledges every message up to last_seen, discarding
it, and returns everything after it in enqueue order. Replaying from an older
cursor after a reconnect returns whatever is still queued. When the queue
overflows the oldest messages are dropped; the client learns of this from a
Gap message preceding the first message it can still receive.

Writers hand new records to the registry through OnRecordAppended, which never
blocks. A dispatcher goroutine matches records against session filters and
enqueues notifications.
*/

////////////////////////////////////////////////////////////////////////////////

var (
	// ErrDuplicateSession is returned when a client opens a second session.
	ErrDuplicateSession = errors.New("client already has an open session")

	// ErrSessionNotFound is returned for an unknown or closed session. It
	// matches news.ErrNotFound.
	ErrSessionNotFound = fmt.Errorf("session %w", news.ErrNotFound)
)

// State is a session's lifecycle state.
type State int

const (
	// Opening is the state of a session being registered.
	Opening State = iota
	// Open sessions receive notifications and may be polled.
	Open
	// Closing sessions are being torn down.
	Closing
	// Closed sessions are gone; their queues have been discarded.
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(data []byte) error {
	for _, candidate := range []State{Opening, Open, Closing, Closed} {
		if candidate.String() == string(data) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unrecognized session state %q", data)
}

// Filter selects the records a session is notified about. A record matches
// if its category is listed or it carries any listed tag. An empty filter
// matches every record.
type Filter struct {
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Match reports whether the record passes the filter.
func (f Filter) Match(r news.Record) bool {
	if len(f.Categories) == 0 && len(f.Tags) == 0 {
		return true
	}
	if slices.Contains(f.Categories, r.Category) {
		return true
	}
	for _, tag := range f.Tags {
		if r.HasTag(tag) {
			return true
		}
	}
	return false
}

// Info describes a session.
type Info struct {
	ID           string    `json:"id"`
	Client       string    `json:"client"`
	State        State     `json:"state"`
	Filter       Filter    `json:"filter"`
	Pending      int       `json:"pending"`
	LastSequence uint64    `json:"lastSequence"`
	Acked        uint64    `json:"acked"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
}

// Batch is the result of a poll.
type Batch struct {
	Messages []Message `json:"messages"`
	// Next is the cursor to pass to the following poll.
	Next uint64 `json:"next"`
}

type session struct {
	id         string
	client     string
	state      State
	filter     Filter
	queue      []Message
	nextSeq    uint64
	acked      uint64
	createdAt  time.Time
	lastActive time.Time
}

func (s *session) info() Info {
	return Info{
		ID:           s.id,
		Client:       s.client,
		State:        s.state,
		Filter:       s.filter,
		Pending:      len(s.queue),
		LastSequence: s.nextSeq - 1,
		Acked:        s.acked,
		CreatedAt:    s.createdAt,
		LastActive:   s.lastActive,
	}
}

// Registry tracks open sessions.
type Registry struct {
	mtx      *sync.Mutex
	sessions map[string]*session
	clients  map[string]string
	events   chan news.Record
	conf     config
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	conf := config{
		queueBound:  256,
		backlog:     1024,
		idleTimeout: 10 * time.Minute,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	conf.queueBound = max(conf.queueBound, 1)
	return &Registry{
		mtx:      &sync.Mutex{},
		sessions: make(map[string]*session),
		clients:  make(map[string]string),
		events:   make(chan news.Record, conf.backlog),
		conf:     conf,
	}
}

// Open creates a session for the client. A client may hold one open session
// at a time.
func (r *Registry) Open(ctx context.Context, client string, filter Filter) (Info, error) {
	if client == "" {
		return Info{}, fmt.Errorf("%w: client is required", news.ErrInvalidArgument)
	}
	now := r.conf.clock()
	s := &session{
		id:         uuid.New().String(),
		client:     client,
		state:      Opening,
		filter:     filter,
		queue:      []Message{},
		nextSeq:    1,
		createdAt:  now,
		lastActive: now,
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.clients[client]; ok {
		return Info{}, fmt.Errorf("%w: %s", ErrDuplicateSession, client)
	}
	r.sessions[s.id] = s
	r.clients[client] = s.id
	s.state = Open
	openSessions.Inc()
	log.Infow(ctx, "Opened session", "session", s.id, "client", client)
	return s.info(), nil
}

// Close tears down a session and discards its queue.
func (r *Registry) Close(ctx context.Context, id string) (Info, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	r.close(s)
	log.Infow(ctx, "Closed session", "session", id, "client", s.client)
	return s.info(), nil
}

// Enqueue appends a payload to the session's queue.
func (r *Registry) Enqueue(id string, payload Payload) (uint64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return r.enqueue(s, payload), nil
}

// Broadcast enqueues the payload on every open session.
func (r *Registry) Broadcast(payload Payload) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, s := range r.sessions {
		r.enqueue(s, payload)
	}
}

// Poll acknowledges messages up to lastSeen and returns the rest.
func (r *Registry) Poll(id string, lastSeen uint64) (Batch, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Batch{}, ErrSessionNotFound
	}
	if lastSeen >= s.nextSeq {
		return Batch{}, fmt.Errorf("%w: sequence %d has not been issued", news.ErrInvalidArgument, lastSeen)
	}
	s.lastActive = r.conf.clock()
	i := 0
	for i < len(s.queue) && s.queue[i].Sequence <= lastSeen {
		i++
	}
	s.queue = s.queue[i:]
	s.acked = max(s.acked, lastSeen)

	messages := make([]Message, 0, len(s.queue)+1)
	first := s.nextSeq
	if len(s.queue) > 0 {
		first = s.queue[0].Sequence
	}
	// Acknowledged messages were delivered, not dropped, so a replay from an
	// older cursor only reports what overflow discarded after them.
	if from := s.acked + 1; first > from {
		messages = append(messages, Message{
			Sequence: first - 1,
			Payload:  Gap{From: from, To: first - 1},
		})
	}
	messages = append(messages, s.queue...)
	next := s.acked
	if len(messages) > 0 {
		next = messages[len(messages)-1].Sequence
	}
	return Batch{Messages: messages, Next: next}, nil
}

// Get returns information about a session.
func (r *Registry) Get(id string) (Info, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return s.info(), nil
}

// List returns every open session ordered by ID.
func (r *Registry) List() []Info {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	ids := maps.Keys(r.sessions)
	slices.Sort(ids)
	result := make([]Info, 0, len(ids))
	for _, id := range ids {
		result = append(result, r.sessions[id].info())
	}
	return result
}

// OnRecordAppended hands a record to the dispatcher. It never blocks; if the
// dispatcher is behind, the notification is dropped.
func (r *Registry) OnRecordAppended(record news.Record) {
	select {
	case r.events <- record:
	default:
		droppedNotifications.WithLabelValues("backlog").Inc()
	}
}

// Dispatch enqueues a notification for the record on every session whose
// filter matches it.
func (r *Registry) Dispatch(record news.Record) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, s := range r.sessions {
		if s.state == Open && s.filter.Match(record) {
			r.enqueue(s, RecordAdded{Record: record})
		}
	}
}

// Reap closes sessions that have not polled within the idle timeout. It
// returns the number closed.
func (r *Registry) Reap(ctx context.Context) int {
	if r.conf.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.conf.clock().Add(-r.conf.idleTimeout)
	r.mtx.Lock()
	defer r.mtx.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.lastActive.Before(cutoff) {
			r.close(s)
			log.Infow(ctx, "Reaped idle session", "session", s.id, "client", s.client, "lastActive", s.lastActive)
			n++
		}
	}
	reapedSessions.Add(float64(n))
	return n
}

// Start runs the dispatcher and, if an idle timeout is configured, the
// reaper, until the context is canceled. It returns immediately.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case record := <-r.events:
				r.Dispatch(record)
			}
		}
	}()
	if r.conf.idleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(max(r.conf.idleTimeout/4, time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Reap(ctx)
			}
		}
	}()
}

// enqueue assigns the next sequence and trims the queue to its bound. Caller
// holds the lock.
func (r *Registry) enqueue(s *session, payload Payload) uint64 {
	seq := s.nextSeq
	s.nextSeq++
	s.queue = append(s.queue, Message{Sequence: seq, Payload: payload})
	if over := len(s.queue) - r.conf.queueBound; over > 0 {
		s.queue = s.queue[over:]
		droppedNotifications.WithLabelValues("queue_full").Add(float64(over))
	}
	return seq
}

// close transitions the session to Closed and unregisters it. Caller holds
// the lock.
func (r *Registry) close(s *session) {
	s.state = Closing
	s.queue = nil
	delete(r.sessions, s.id)
	delete(r.clients, s.client)
	s.state = Closed
	openSessions.Dec()
}
