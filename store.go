// Package records is a session-aware record persistence layer for processes
// sharing one durable key-value store.
//
// A Store opens records from the durable store, lets callers mutate them,
// and flushes dirty records in the background. Write ownership of a key is a
// lock held in a separate coordination store, so at most one process at a
// time writes a given record.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/creastat/records/coordination"
	"github.com/creastat/records/durable"
	"github.com/creastat/records/internal/clock"
	"github.com/creastat/records/lock"
	"github.com/creastat/records/metrics"
	"github.com/creastat/records/queue"
	"pkt.systems/pslog"
)

// processSession is shared by every store in the process unless overridden.
var processSession = sync.OnceValue(uuid.NewString)

// Deps are the collaborators a Store talks to.
type Deps struct {
	// Durable holds the payloads, scoped to this store's name/scope.
	Durable durable.Store
	// Coordination holds lock tokens.
	Coordination coordination.Store
	// Throttle is the process-wide read/write queue pair.
	Throttle *queue.Throttle
}

// loadCall is an in-flight Open shared by concurrent callers.
type loadCall[T any] struct {
	done chan struct{}
	rec  *Record[T]
	err  error
}

func (c *loadCall[T]) wait(ctx context.Context) (*Record[T], error) {
	select {
	case <-c.done:
		return c.rec, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Store tracks the records one process has open for a durable namespace.
type Store[T any] struct {
	id      string
	session string
	cfg     Config
	durable *durable.Throttled
	locks   *lock.Client
	writes  *queue.Queue
	codec   Codec[T]
	clock   clock.Clock
	logger  pslog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	records map[string]*Record[T]
	loading map[string]*loadCall[T]
	closing map[string]chan struct{}
	pending map[string]uint64
	gen     uint64
	closed  bool

	loopMu   sync.Mutex
	stopLoop context.CancelFunc
	loopDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// StoreID returns "name" or "name{scope}".
func StoreID(name, scope string) string {
	if scope == "" {
		return name
	}
	return name + "{" + scope + "}"
}

// New creates a Store for the durable namespace name/scope. Call Start to run
// the background reconciliation loop and Shutdown to drain it.
func New[T any](name, scope string, deps Deps, opts ...Option) (*Store[T], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: store name is required", ErrInvalidConfig)
	}
	if deps.Durable == nil || deps.Coordination == nil || deps.Throttle == nil {
		return nil, fmt.Errorf("%w: durable store, coordination store and throttle are required", ErrInvalidConfig)
	}

	set := &settings{config: DefaultConfig()}
	for _, opt := range opts {
		opt(set)
	}
	if err := set.config.Validate(); err != nil {
		return nil, err
	}

	var codec Codec[T] = JSONCodec[T]{}
	if set.codec != nil {
		c, ok := set.codec.(Codec[T])
		if !ok {
			return nil, fmt.Errorf("%w: codec %T does not encode %T", ErrInvalidConfig, set.codec, *new(T))
		}
		codec = c
	}

	session := set.sessionID
	if session == "" {
		session = processSession()
	}
	logger := set.logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	clk := clock.Ensure(set.clock)
	id := StoreID(name, scope)
	logger = logger.With("svc", "records.store", "store", id)

	s := &Store[T]{
		id:      id,
		session: session,
		cfg:     set.config,
		durable: durable.NewThrottled(deps.Durable, deps.Throttle),
		locks: lock.New(deps.Coordination, id, session,
			lock.WithTTL(set.config.LockTTL),
			lock.WithClock(clk),
			lock.WithLogger(logger),
			lock.WithMetrics(set.metrics),
		),
		writes: queue.New(id+".writes",
			queue.WithClock(clk),
			queue.WithLogger(logger),
			queue.WithMetrics(set.metrics),
		),
		codec:   codec,
		clock:   clk,
		logger:  logger,
		metrics: set.metrics,
		records: make(map[string]*Record[T]),
		loading: make(map[string]*loadCall[T]),
		closing: make(map[string]chan struct{}),
		pending: make(map[string]uint64),
	}
	if set.lifecycle != nil {
		set.lifecycle.OnTerminate("records.store."+id, s.Shutdown)
	}
	return s, nil
}

// ID returns the store identifier.
func (s *Store[T]) ID() string { return s.id }

// SessionID returns the session that owns this store's locks.
func (s *Store[T]) SessionID() string { return s.session }

// Config returns the validated timings.
func (s *Store[T]) Config() Config { return s.cfg }

// Find returns a loaded record without waiting for in-flight loads.
func (s *Store[T]) Find(key any) (*Record[T], bool) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[k]
	return rec, ok
}

// Open returns the record for key, reading it from the durable store the
// first time. Concurrent opens of the same key share one read.
func (s *Store[T]) Open(ctx context.Context, key any) (*Record[T], error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrStoreClosed
		}
		if rec, ok := s.records[k]; ok {
			s.mu.Unlock()
			return rec, nil
		}
		if call, ok := s.loading[k]; ok {
			s.mu.Unlock()
			return call.wait(ctx)
		}
		if closing, ok := s.closing[k]; ok {
			// the closing write must land before the record is read again
			s.mu.Unlock()
			select {
			case <-closing:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		call := &loadCall[T]{done: make(chan struct{})}
		s.loading[k] = call
		s.mu.Unlock()

		go s.load(context.WithoutCancel(ctx), k, call)
		return call.wait(ctx)
	}
}

func (s *Store[T]) load(ctx context.Context, key string, call *loadCall[T]) {
	rec := newRecord(s, key)
	raw, ok, err := s.durable.Read(ctx, key, false)
	if err == nil && ok {
		err = rec.load(s.codec, raw)
	}

	s.mu.Lock()
	delete(s.loading, key)
	if err != nil {
		call.err = &LoadError{Key: key, Err: err}
	} else {
		call.rec = rec
		s.records[key] = rec
	}
	s.reportLocked()
	s.mu.Unlock()
	close(call.done)

	if err != nil {
		s.logger.Error("records.store.load.failed", "key", key, "error", err)
		return
	}
	s.logger.Debug("records.store.load.ok", "record", rec.id, "present", ok)
}

// Close seals the record for key, flushes it when dirty (otherwise releases
// its lock) and stops tracking it. The close path runs to completion even
// when ctx is cancelled. Flush and release failures are logged.
func (s *Store[T]) Close(ctx context.Context, key any) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	_ = s.closeKey(context.WithoutCancel(ctx), k)
	return nil
}

// closeKey waits for an in-flight load of key, then runs the close path.
// Load failures were already reported by the load itself.
func (s *Store[T]) closeKey(ctx context.Context, key string) error {
	s.mu.Lock()
	rec, ok := s.records[key]
	call := s.loading[key]
	s.mu.Unlock()

	if !ok {
		if call == nil {
			return nil
		}
		loaded, err := call.wait(ctx)
		if err != nil {
			return nil
		}
		rec = loaded
	}
	return s.closeRecord(ctx, rec)
}

func (s *Store[T]) closeRecord(ctx context.Context, rec *Record[T]) error {
	s.mu.Lock()
	if s.records[rec.key] != rec {
		s.mu.Unlock()
		return nil
	}
	rec.setState(Sealed)
	delete(s.records, rec.key)
	_, dirty := s.pending[rec.key]
	closing := make(chan struct{})
	s.closing[rec.key] = closing
	s.reportLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.closing[rec.key] == closing {
			delete(s.closing, rec.key)
		}
		s.mu.Unlock()
		close(closing)
	}()

	if !dirty {
		err := s.release(ctx, rec)
		s.logger.Debug("records.store.closed", "record", rec.id)
		return err
	}

	// a sealed write releases the lock itself
	werr := s.write(ctx, rec, true)
	if werr == nil {
		s.logger.Debug("records.store.closed", "record", rec.id)
		return nil
	}
	s.logger.Error("records.store.close.write_failed", "record", rec.id, "error", werr)
	s.mu.Lock()
	delete(s.pending, rec.key)
	s.reportLocked()
	s.mu.Unlock()
	return errors.Join(werr, s.release(ctx, rec))
}

// release drops the lock through the store's write queue, so it cannot
// interleave with a write or refresh of the same record.
func (s *Store[T]) release(ctx context.Context, rec *Record[T]) error {
	err := s.writes.PushFront(ctx, func(ctx context.Context) error {
		return s.locks.Release(ctx, rec.key)
	}).Wait(ctx)
	if err != nil {
		s.logger.Warn("records.store.release.failed", "record", rec.id, "error", err)
	}
	return err
}

// Unseal marks the record for write ownership and acquires its lock. A
// *lock.ConflictError (ErrLockConflict) means another session owns it; the
// record stays readable.
func (s *Store[T]) Unseal(ctx context.Context, rec *Record[T]) error {
	if !s.tracked(rec) {
		return ErrNotOpen
	}
	rec.setState(Unsealed)
	return s.locks.AcquireOrRefresh(ctx, rec.key)
}

// Seal gives up write ownership. It refuses, returning false, while the
// record has a pending write; flush it first.
func (s *Store[T]) Seal(ctx context.Context, rec *Record[T]) (bool, error) {
	s.mu.Lock()
	if _, dirty := s.pending[rec.key]; dirty && s.records[rec.key] == rec {
		s.mu.Unlock()
		return false, nil
	}
	rec.setState(Sealed)
	s.mu.Unlock()

	err := s.writes.PushFront(ctx, func(ctx context.Context) error {
		return s.locks.Release(ctx, rec.key)
	}).Wait(ctx)
	return true, err
}

// Save marks the record dirty. The next reconciliation cycle writes it.
func (s *Store[T]) Save(rec *Record[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[rec.key] != rec {
		return ErrNotOpen
	}
	s.gen++
	s.pending[rec.key] = s.gen
	s.reportLocked()
	return nil
}

// SaveNow writes the record ahead of queued background writes and returns
// once it is durable.
func (s *Store[T]) SaveNow(ctx context.Context, rec *Record[T]) error {
	if !s.tracked(rec) {
		return ErrNotOpen
	}
	return s.write(ctx, rec, true)
}

// write runs writeNow on the store's write queue and waits for it.
func (s *Store[T]) write(ctx context.Context, rec *Record[T], priority bool) error {
	return s.enqueueWrite(ctx, rec, priority).Wait(ctx)
}

func (s *Store[T]) enqueueWrite(ctx context.Context, rec *Record[T], priority bool) *queue.Future {
	task := func(ctx context.Context) error {
		return s.writeNow(ctx, rec, priority)
	}
	if priority {
		return s.writes.PushFront(ctx, task)
	}
	return s.writes.Push(ctx, task)
}

// writeNow persists rec. The dirty mark stays in place while the write is in
// flight; on success it is cleared only if no newer Save replaced its
// generation, so a save made during the write is flushed by the next cycle.
func (s *Store[T]) writeNow(ctx context.Context, rec *Record[T], priority bool) error {
	s.mu.Lock()
	gen, dirty := s.pending[rec.key]
	s.mu.Unlock()

	// writing always reasserts ownership
	if err := s.locks.AcquireOrRefresh(ctx, rec.key); err != nil {
		return err
	}

	payload, present, err := rec.snapshot(s.codec)
	if err != nil {
		return fmt.Errorf("records: encode %q: %w", rec.key, err)
	}
	if present {
		if err := s.durable.Write(ctx, rec.key, payload, priority); err != nil {
			return err
		}
	}
	s.logger.Debug("records.store.write.ok", "record", rec.id, "present", present)

	if dirty {
		s.mu.Lock()
		if cur, ok := s.pending[rec.key]; ok && cur == gen {
			delete(s.pending, rec.key)
		}
		s.reportLocked()
		s.mu.Unlock()
	}

	if rec.TargetState() != Unsealed {
		if err := s.locks.Release(ctx, rec.key); err != nil {
			s.logger.Warn("records.store.write.release_failed", "record", rec.id, "error", err)
		}
	}
	return nil
}

// Pending returns the dirty keys in sorted order.
func (s *Store[T]) Pending() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Loaded returns the keys of every open record in sorted order.
func (s *Store[T]) Loaded() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Owner reports which session currently holds the lock for key.
func (s *Store[T]) Owner(ctx context.Context, key any) (lock.Token, bool, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return lock.Token{}, false, err
	}
	return s.locks.Owner(ctx, k)
}

// HoldsLock reports whether this store believes it owns the lock for key.
func (s *Store[T]) HoldsLock(key any) bool {
	k, err := NormalizeKey(key)
	if err != nil {
		return false
	}
	return s.locks.Held(k)
}

func (s *Store[T]) tracked(rec *Record[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[rec.key] == rec
}

// reportLocked publishes bookkeeping gauges. Callers hold s.mu.
func (s *Store[T]) reportLocked() {
	s.metrics.PendingWrites(s.id, len(s.pending))
	s.metrics.OpenRecords(s.id, len(s.records))
}
