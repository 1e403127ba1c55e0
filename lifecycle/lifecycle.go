// Package lifecycle provides the process "about to terminate" hook that
// record stores register their shutdown drain against.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"
)

// Hook runs when the process is about to terminate.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Hooks is a registry of termination hooks. Terminate runs them once.
type Hooks struct {
	logger pslog.Logger

	mu     sync.Mutex
	hooks  []namedHook
	once   sync.Once
	result error
}

// New returns an empty registry.
func New(logger pslog.Logger) *Hooks {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Hooks{logger: logger.With("svc", "lifecycle")}
}

// OnTerminate registers fn under name.
func (h *Hooks) OnTerminate(name string, fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: fn})
}

// Terminate runs every registered hook concurrently and blocks until all of
// them returned. Failures are logged and joined. Later calls return the
// first call's result.
func (h *Hooks) Terminate(ctx context.Context) error {
	h.once.Do(func() {
		h.mu.Lock()
		hooks := append([]namedHook(nil), h.hooks...)
		h.mu.Unlock()

		h.logger.Info("lifecycle.terminate.start", "hooks", len(hooks))
		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)
		for _, hook := range hooks {
			g.Go(func() error {
				err := hook.fn(ctx)
				if err == nil {
					return nil
				}
				err = fmt.Errorf("%s: %w", hook.name, err)
				h.logger.Warn("lifecycle.terminate.hook_failed", "hook", hook.name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			})
		}
		// Wait reports the first failure; every failure is joined
		if err := g.Wait(); err != nil {
			h.result = errors.Join(errs...)
		}
		h.logger.Info("lifecycle.terminate.done")
	})
	return h.result
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
