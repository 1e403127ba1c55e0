package records

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the lock intent of a Record.
type State int32

const (
	// Sealed records are read-only; no write ownership is held or wanted.
	Sealed State = iota
	// Unsealed records want exclusive write ownership.
	Unsealed
)

func (s State) String() string {
	switch s {
	case Sealed:
		return "sealed"
	case Unsealed:
		return "unsealed"
	default:
		return "unknown"
	}
}

// Record is the in-memory copy of one persisted entity. It belongs to the
// Store that opened it and stays valid until that store closes it.
type Record[T any] struct {
	key   string
	id    string
	store *Store[T]
	state atomic.Int32

	mu      sync.RWMutex
	data    T
	present bool
}

func newRecord[T any](s *Store[T], key string) *Record[T] {
	return &Record[T]{
		key:   key,
		id:    s.id + "/" + key,
		store: s,
	}
}

// Key returns the canonical key.
func (r *Record[T]) Key() string { return r.key }

// ID returns "<storeId>/<key>", for diagnostics.
func (r *Record[T]) ID() string { return r.id }

// TargetState returns the desired lock state.
func (r *Record[T]) TargetState() State {
	return State(r.state.Load())
}

func (r *Record[T]) setState(s State) {
	r.state.Store(int32(s))
}

// Data returns the payload and whether one exists. Reads are allowed in
// every lock state.
func (r *Record[T]) Data() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data, r.present
}

// Set replaces the payload. Call Save or SaveNow to persist it.
func (r *Record[T]) Set(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = v
	r.present = true
}

// Update mutates the payload in place, starting from the zero value when
// the record has none.
func (r *Record[T]) Update(fn func(v *T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.data)
	r.present = true
}

// Clear drops the in-memory payload.
func (r *Record[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.data = zero
	r.present = false
}

// Save marks the record dirty for the next background flush.
func (r *Record[T]) Save() error {
	return r.store.Save(r)
}

// SaveNow writes the record immediately.
func (r *Record[T]) SaveNow(ctx context.Context) error {
	return r.store.SaveNow(ctx, r)
}

// Unseal asks for write ownership.
func (r *Record[T]) Unseal(ctx context.Context) error {
	return r.store.Unseal(ctx, r)
}

// Seal gives up write ownership. It returns false while a write is pending.
func (r *Record[T]) Seal(ctx context.Context) (bool, error) {
	return r.store.Seal(ctx, r)
}

// snapshot encodes the payload as it is right now.
func (r *Record[T]) snapshot(codec Codec[T]) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.present {
		return nil, false, nil
	}
	b, err := codec.Encode(r.data)
	return b, true, err
}

func (r *Record[T]) load(codec Codec[T], raw []byte) error {
	v, err := codec.Decode(raw)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = v
	r.present = true
	return nil
}
