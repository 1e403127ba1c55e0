package records

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Shutdown stops the reconciliation loop and drains the store: every
// in-flight load and every open record goes through the Close path
// concurrently. Per-record failures are logged, not returned; the error is
// non-nil only when ctx ends before the drain completes. Later calls return
// the first result.
func (s *Store[T]) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.drain(ctx)
	})
	return s.shutdownErr
}

func (s *Store[T]) drain(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	keys := make([]string, 0, len(s.records)+len(s.loading))
	for key := range s.records {
		keys = append(keys, key)
	}
	for key := range s.loading {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	if err := s.stop(ctx); err != nil {
		return err
	}

	s.logger.Info("records.store.drain.begin", "records", len(keys))
	detached := context.WithoutCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		for _, key := range keys {
			g.Go(func() error {
				return s.closeKey(detached, key)
			})
		}
		if err := g.Wait(); err != nil {
			s.logger.Warn("records.store.drain.partial", "error", err)
		}
		// closes started by callers before the drain may still be writing
		s.mu.Lock()
		closing := make([]chan struct{}, 0, len(s.closing))
		for _, ch := range s.closing {
			closing = append(closing, ch)
		}
		s.mu.Unlock()
		for _, ch := range closing {
			<-ch
		}
	}()

	if err := s.await(ctx, done); err != nil {
		s.logger.Warn("records.store.drain.cancelled", "error", err)
		return err
	}

	// the queue waits for a running task; do not outlive ctx doing so
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.writes.Close()
	}()
	if err := s.await(ctx, stopped); err != nil {
		s.logger.Warn("records.store.drain.queue_busy", "error", err)
		return err
	}
	s.metrics.PendingWrites(s.id, 0)
	s.logger.Info("records.store.drain.done")
	return nil
}

func (s *Store[T]) await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
