//go:build linux

package nbexec

import (
	"sync"

	"github.com/nbexec/nbexec/internal/epoll"
)

// epollRegistrar adapts internal/epoll.Poller to the ReadinessRegistrar
// interface, translating the core's Direction/Token vocabulary into the
// poller's fd/Event/callback vocabulary.
type epollRegistrar struct {
	poller *epoll.Poller
}

func (r *epollRegistrar) Arm(fd int, dir Direction, tok *Token) error {
	ev := epoll.In
	if dir == Write {
		ev = epoll.Out
	}
	return r.poller.Arm(fd, ev, tok.fire)
}

func (r *epollRegistrar) Disarm(tok *Token) error {
	return r.poller.Disarm(tok.fd)
}

var (
	defaultRegistrarOnce sync.Once
	defaultRegistrar     ReadinessRegistrar
	defaultRegistrarErr  error
)

// DefaultRegistrar returns the package-level epoll-backed
// ReadinessRegistrar used by Execute. It is created lazily on first use
// and shared by every handle; most callers never need to touch it
// directly, only hosts that want to supply their own backend via
// ExecuteWith.
func DefaultRegistrar() ReadinessRegistrar {
	defaultRegistrarOnce.Do(func() {
		p, err := epoll.New()
		if err != nil {
			defaultRegistrarErr = err
			return
		}
		defaultRegistrar = &epollRegistrar{poller: p}
	})
	if defaultRegistrarErr != nil {
		// A broken epoll_create1 is unrecoverable for the lifetime of
		// the process, so every call panics with that error. Execute
		// calls DefaultRegistrar first, so it panics too rather than
		// returning a launch error.
		panic(defaultRegistrarErr)
	}
	return defaultRegistrar
}
