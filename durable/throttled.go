package durable

import (
	"context"

	"github.com/creastat/records/queue"
)

type readResult struct {
	value []byte
	ok    bool
}

// Throttled routes every call to a backend through the process-wide read and
// write queues, so all stores sharing a queue.Throttle respect one request
// budget.
type Throttled struct {
	backend  Store
	throttle *queue.Throttle
}

// NewThrottled wraps backend with the shared throttle.
func NewThrottled(backend Store, throttle *queue.Throttle) *Throttled {
	return &Throttled{backend: backend, throttle: throttle}
}

// Read enqueues a read on the shared read queue. Failures are reported as *ReadError.
func (t *Throttled) Read(ctx context.Context, key string, priority bool) ([]byte, bool, error) {
	res, err := queue.Do(ctx, t.throttle.Reads, priority, func(ctx context.Context) (readResult, error) {
		value, ok, err := t.backend.Read(ctx, key)
		return readResult{value: value, ok: ok}, err
	})
	if err != nil {
		return nil, false, &ReadError{Key: key, Err: err}
	}
	return res.value, res.ok, nil
}

// Write enqueues a write on the shared write queue. Failures are reported as *WriteError.
func (t *Throttled) Write(ctx context.Context, key string, value []byte, priority bool) error {
	task := func(ctx context.Context) error {
		return t.backend.Write(ctx, key, value)
	}
	var fut *queue.Future
	if priority {
		fut = t.throttle.Writes.PushFront(ctx, task)
	} else {
		fut = t.throttle.Writes.Push(ctx, task)
	}
	if err := fut.Wait(ctx); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}
