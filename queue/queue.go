// Package queue implements the serial request queues that sit in front of the
// durable store: one task at a time, FIFO, with a priority lane that jumps to
// the head, and optional minimum spacing between consecutive tasks.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creastat/records/internal/clock"
	"github.com/creastat/records/metrics"
	"pkt.systems/pslog"
)

// ErrClosed is returned for tasks that could not run because the queue was closed.
var ErrClosed = errors.New("queue: closed")

// Task is a unit of work executed by a Queue.
type Task func(ctx context.Context) error

// Spacer reports the minimum delay between two consecutive tasks.
type Spacer interface {
	MinimumInterval() time.Duration
}

// Future resolves once its task has run (or was abandoned).
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the task finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task result. Only meaningful after Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the task finished or ctx is done. A cancelled wait does
// not cancel the task.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type item struct {
	ctx  context.Context
	task Task
	fut  *Future
}

// Queue runs tasks one at a time on a dedicated goroutine.
type Queue struct {
	name    string
	clock   clock.Clock
	spacing Spacer
	logger  pslog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	items  []item
	closed bool
	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithSpacing enforces s.MinimumInterval() between consecutive tasks.
func WithSpacing(s Spacer) Option {
	return func(q *Queue) {
		q.spacing = s
	}
}

// WithClock overrides the clock used for spacing delays.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l pslog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithMetrics reports depth and task outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// New starts a queue worker. Call Close to stop it.
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name:   name,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.clock = clock.Ensure(q.clock)
	if q.logger == nil {
		q.logger = pslog.NoopLogger()
	}
	q.logger = q.logger.With("svc", "queue", "queue", name)
	go q.run()
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Push appends task at the tail of the queue.
func (q *Queue) Push(ctx context.Context, task Task) *Future {
	return q.enqueue(ctx, task, false)
}

// PushFront places task ahead of every waiting task. A task that is already
// running is not pre-empted.
func (q *Queue) PushFront(ctx context.Context, task Task) *Future {
	return q.enqueue(ctx, task, true)
}

// Len returns the number of waiting tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) enqueue(ctx context.Context, task Task, front bool) *Future {
	fut := newFuture()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		fut.resolve(ErrClosed)
		return fut
	}
	it := item{ctx: ctx, task: task, fut: fut}
	if front {
		q.items = append([]item{it}, q.items...)
	} else {
		q.items = append(q.items, it)
	}
	depth := len(q.items)
	q.mu.Unlock()

	q.metrics.QueueDepth(q.name, depth)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return fut
}

// Close stops the worker once the running task returns. Waiting tasks are
// resolved with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	close(q.stop)
	for _, it := range pending {
		it.fut.resolve(ErrClosed)
	}
	if len(pending) > 0 {
		q.logger.Debug("queue.closed.abandoned", "tasks", len(pending))
	}
	q.metrics.QueueDepth(q.name, 0)
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		it, ok := q.next()
		if !ok {
			return
		}
		if err := it.ctx.Err(); err != nil {
			it.fut.resolve(err)
			continue
		}
		start := q.clock.Now()
		err := q.exec(it)
		q.metrics.QueueTask(q.name, q.clock.Now().Sub(start), err)
		it.fut.resolve(err)
		q.wait()
	}
}

func (q *Queue) next() (item, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return item{}, false
		}
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = item{}
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()
			q.metrics.QueueDepth(q.name, depth)
			return it, true
		}
		q.mu.Unlock()
		select {
		case <-q.signal:
		case <-q.stop:
		}
	}
}

func (q *Queue) exec(it item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue %s: task panic: %v", q.name, r)
			q.logger.Error("queue.task.panic", "panic", r)
		}
	}()
	return it.task(it.ctx)
}

// wait holds the worker back for the configured spacing.
func (q *Queue) wait() {
	if q.spacing == nil {
		return
	}
	d := q.spacing.MinimumInterval()
	if d <= 0 {
		return
	}
	q.logger.Trace("queue.spacing", "delay", d)
	select {
	case <-q.clock.After(d):
	case <-q.stop:
	}
}

// Do runs fn on q and returns its result. When priority is set the task is
// placed at the head of the queue.
func Do[T any](ctx context.Context, q *Queue, priority bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	task := func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	}
	var fut *Future
	if priority {
		fut = q.PushFront(ctx, task)
	} else {
		fut = q.Push(ctx, task)
	}
	if err := fut.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
