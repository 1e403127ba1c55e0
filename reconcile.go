package records

import (
	"context"

	"github.com/creastat/records/queue"
)

// Start launches the background reconciliation loop. It runs Flush every
// Config.ReconcileInterval until ctx is done or Shutdown is called. Calling
// Start on a running or shut down store does nothing.
func (s *Store[T]) Start(ctx context.Context) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.stopLoop != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	go s.loop(loopCtx, s.loopDone)
	s.logger.Info("records.store.loop.started", "interval", s.cfg.ReconcileInterval)
}

func (s *Store[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		tick := s.clock.After(s.cfg.ReconcileInterval)
		select {
		case <-ctx.Done():
			s.logger.Debug("records.store.loop.stopped")
			return
		case <-tick:
		}
		s.Flush(context.WithoutCancel(ctx))
	}
}

// stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Store[T]) stop(ctx context.Context) error {
	s.loopMu.Lock()
	cancel, done := s.stopLoop, s.loopDone
	s.loopMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush runs one reconciliation cycle: every dirty record is written, then
// every other Unsealed record has its lock refreshed. Failures are logged
// and never stop the cycle.
func (s *Store[T]) Flush(ctx context.Context) {
	s.mu.Lock()
	dirty := make([]*Record[T], 0, len(s.pending))
	for key := range s.pending {
		if rec, ok := s.records[key]; ok {
			dirty = append(dirty, rec)
		}
	}
	loaded := make([]*Record[T], 0, len(s.records))
	for _, rec := range s.records {
		loaded = append(loaded, rec)
	}
	s.mu.Unlock()

	writes := make([]*queue.Future, len(dirty))
	for i, rec := range dirty {
		writes[i] = s.enqueueWrite(ctx, rec, false)
	}
	written := make(map[string]struct{}, len(dirty))
	for i, fut := range writes {
		rec := dirty[i]
		if err := fut.Wait(ctx); err != nil {
			s.logger.Warn("records.store.write.failed", "record", rec.id, "error", err)
			continue
		}
		written[rec.key] = struct{}{}
	}

	var refreshes []*queue.Future
	var refreshed []*Record[T]
	for _, rec := range loaded {
		if _, ok := written[rec.key]; ok || rec.TargetState() != Unsealed {
			continue
		}
		refreshes = append(refreshes, s.writes.Push(ctx, s.refreshTask(rec)))
		refreshed = append(refreshed, rec)
	}
	for i, fut := range refreshes {
		if err := fut.Wait(ctx); err != nil {
			s.logger.Warn("records.store.refresh.failed", "record", refreshed[i].id, "error", err)
		}
	}

	s.metrics.ReconcileCycle(s.id)
	s.logger.Trace("records.store.reconciled", "written", len(written), "refreshed", len(refreshes))
}

// refreshTask pushes back the lock expiry of rec if it is still open and
// Unsealed by the time the task runs.
func (s *Store[T]) refreshTask(rec *Record[T]) queue.Task {
	return func(ctx context.Context) error {
		if !s.tracked(rec) || rec.TargetState() != Unsealed {
			return nil
		}
		return s.locks.AcquireOrRefresh(ctx, rec.key)
	}
}
