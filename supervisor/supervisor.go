// Package supervisor tracks a set of running ExecContext handles and
// gives a host a single Shutdown call that escalates SIGTERM to
// SIGKILL across all of them, grounded on edirooss/zmux-server's
// processmgr.Process.Close graceful-then-forceful termination.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nbexec/nbexec"
)

// Supervisor tracks live ExecContext handles so a host can terminate
// all of them together, e.g. on its own shutdown signal.
type Supervisor struct {
	mu      sync.Mutex
	handles map[*nbexec.ExecContext]struct{}
	grace   time.Duration
	log     *zap.Logger
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithGracePeriod overrides the default 5 second SIGTERM grace period.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) { s.grace = d }
}

// WithLogger overrides the default zap.NewNop() logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// New creates a Supervisor with a 5 second default grace period and a
// no-op logger.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		handles: make(map[*nbexec.ExecContext]struct{}),
		grace:   5 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track registers ctx so a subsequent Shutdown reaps it too.
func (s *Supervisor) Track(ctx *nbexec.ExecContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[ctx] = struct{}{}
}

// Untrack removes ctx from the tracked set without touching the child,
// for callers that have already reaped it themselves.
func (s *Supervisor) Untrack(ctx *nbexec.ExecContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, ctx)
}

// Shutdown sends SIGTERM to every tracked child, waits up to the grace
// period (or until goCtx is cancelled) for each to exit on its own,
// then SIGKILLs any stragglers and waits for those too.
func (s *Supervisor) Shutdown(goCtx context.Context) error {
	s.mu.Lock()
	targets := make([]*nbexec.ExecContext, 0, len(s.handles))
	for ctx := range s.handles {
		targets = append(targets, ctx)
	}
	s.handles = make(map[*nbexec.ExecContext]struct{})
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, ctx := range targets {
		wg.Add(1)
		go func(ctx *nbexec.ExecContext) {
			defer wg.Done()
			s.terminate(goCtx, ctx)
		}(ctx)
	}
	wg.Wait()
	return nil
}

func (s *Supervisor) terminate(goCtx context.Context, ctx *nbexec.ExecContext) {
	pid := ctx.Pid()
	log := s.log.With(zap.Int("pid", pid))

	if !nbexec.Alive(ctx) {
		log.Debug("child already exited")
		return
	}

	log.Info("sending SIGTERM")
	if err := nbexec.Terminate(ctx); err != nil {
		log.Warn("SIGTERM failed", zap.Error(err))
	}

	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()
	for {
		if _, err := nbexec.Wait(ctx); err == nil {
			log.Info("child exited after SIGTERM")
			return
		}
		select {
		case <-deadline.C:
			log.Warn("grace period elapsed, sending SIGKILL")
			if err := nbexec.Kill(ctx); err != nil {
				log.Error("SIGKILL failed", zap.Error(err))
			}
			s.reapForce(log, ctx)
			return
		case <-goCtx.Done():
			log.Warn("shutdown context cancelled, sending SIGKILL")
			if err := nbexec.Kill(ctx); err != nil {
				log.Error("SIGKILL failed", zap.Error(err))
			}
			s.reapForce(log, ctx)
			return
		case <-poll.C:
		}
	}
}

func (s *Supervisor) reapForce(log *zap.Logger, ctx *nbexec.ExecContext) {
	for i := 0; i < 100; i++ {
		if _, err := nbexec.Wait(ctx); err == nil {
			log.Info("child exited after SIGKILL")
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Error("child did not exit even after SIGKILL")
}

// WatchSignals is a convenience for cmd/nbexec-style hosts: it arranges
// for Shutdown to run automatically when the process receives SIGINT
// or SIGTERM, and returns a function to stop watching and release the
// signal channel.
func WatchSignals(s *Supervisor) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info("received shutdown signal", zap.String("signal", sig.String()))
			_ = s.Shutdown(context.Background())
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
