// Package epoll implements the default readiness backend for package
// nbexec: an edge-triggered, one-shot epoll event loop. It knows nothing
// about processes or pipes; it only arms/disarms plain file descriptors
// and invokes a callback when one becomes ready, which is the shape
// spec.md §9 asks a host's readiness subsystem to provide ("arm(fd,
// direction, token)" / "disarm(token)").
//
// Grounded on the raw epoll/fcntl/pipe syscall usage already present in
// the teacher (orospakr/spawnexec's use of golang.org/x/sys/unix) and in
// the retrieved pipe package (other_examples:
// perazaharmonics-Go-Use-a-Kernel/pipe), extended with epoll_create1 /
// epoll_ctl / epoll_wait, which neither example exercises.
package epoll

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Event selects which direction of readiness a caller wants.
type Event uint32

const (
	In  Event = unix.EPOLLIN
	Out Event = unix.EPOLLOUT
)

type registration struct {
	events unix.EpollEvent
	added  bool
	onIn   func()
	onOut  func()
}

// Poller is a single epoll instance shared by every ExecContext created
// against it. One Poller is enough for a whole process; nbexec's default
// registrar lazily creates and shares one.
type Poller struct {
	epfd int

	mu   sync.Mutex
	regs map[int]*registration

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a Poller and starts its event loop goroutine.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll: create: %w", err)
	}
	p := &Poller{
		epfd: epfd,
		regs: make(map[int]*registration),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// Arm registers fd for one-shot, edge-triggered notification of ev,
// invoking onReady exactly once when it fires. Arming the same (fd, ev)
// pair again before it has fired is a caller error at the nbexec.Token
// layer, but this package itself just forwards to epoll_ctl.
func (p *Poller) Arm(fd int, ev Event, onReady func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[fd]
	if !ok {
		reg = &registration{}
		p.regs[fd] = reg
	}

	switch ev {
	case In:
		reg.onIn = onReady
		reg.events.Events |= uint32(In)
	case Out:
		reg.onOut = onReady
		reg.events.Events |= uint32(Out)
	}
	reg.events.Events |= unix.EPOLLONESHOT | unix.EPOLLET
	reg.events.Fd = int32(fd)

	op := unix.EPOLL_CTL_MOD
	if !reg.added {
		op = unix.EPOLL_CTL_ADD
		reg.added = true
	}
	err := unix.EpollCtl(p.epfd, op, fd, &reg.events)
	if err == unix.EEXIST && op == unix.EPOLL_CTL_ADD {
		// A one-shot registration that already fired stays in the
		// epoll interest set, disabled; re-enable it instead.
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &reg.events)
	}
	if err != nil {
		return fmt.Errorf("epoll: ctl(%d): %w", fd, err)
	}
	return nil
}

// Disarm removes any pending subscription for fd. It is idempotent.
func (p *Poller) Disarm(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[fd]
	if !ok || !reg.added {
		return nil
	}
	delete(p.regs, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return fmt.Errorf("epoll: ctl_del(%d): %w", fd, err)
	}
	return nil
}

// Close stops the event loop and releases the epoll fd. Pending
// subscriptions are abandoned; their callbacks never fire.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
		unix.Close(p.epfd)
	})
	return nil
}

func (p *Poller) loop() {
	defer close(p.done)

	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		n, err := unix.EpollWait(p.epfd, events, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			p.mu.Lock()
			reg, ok := p.regs[fd]
			if !ok {
				p.mu.Unlock()
				continue
			}
			var onIn, onOut func()
			// Hang-up and error are readiness too: the next read/write
			// returns at once (EOF or an error) instead of blocking.
			if mask&(uint32(In)|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				onIn, reg.onIn = reg.onIn, nil
				reg.events.Events &^= uint32(In)
			}
			if mask&(uint32(Out)|unix.EPOLLERR) != 0 {
				onOut, reg.onOut = reg.onOut, nil
				reg.events.Events &^= uint32(Out)
			}
			if reg.events.Events&(uint32(In)|uint32(Out)) == 0 {
				delete(p.regs, fd)
				reg.added = false
			}
			p.mu.Unlock()

			if onIn != nil {
				onIn()
			}
			if onOut != nil {
				onOut()
			}
		}
	}
}
