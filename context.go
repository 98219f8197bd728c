package nbexec

import (
	"runtime"
	"sync"
)

// ExitType classifies how a reaped child terminated.
type ExitType int

const (
	// ExitNormal means the child called exit() or returned from main;
	// ExitStatus holds its exit code.
	ExitNormal ExitType = iota
	// ExitSignaled means the child was terminated by a signal;
	// ExitStatus holds the signal number.
	ExitSignaled
	// ExitStopped means the child was stopped (WIFSTOPPED); ExitStatus
	// is always 0 in this case.
	ExitStopped
)

func (t ExitType) String() string {
	switch t {
	case ExitNormal:
		return "exit"
	case ExitSignaled:
		return "signaled"
	case ExitStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitInfo is the memoized terminal status of a reaped child (spec.md §3,
// §4.5).
type ExitInfo struct {
	Type   ExitType
	Status int
}

// ExecContext is the opaque handle returned by Execute. It owns the
// child's PID, the two parent-side pipe fds, and the per-direction
// readiness tokens used to park callers waiting on those fds. See
// spec.md §3 for the full invariant list.
type ExecContext struct {
	mu sync.Mutex

	pid int

	inputFD  int // parent-side, writable, child's stdin
	outputFD int // parent-side, readable, child's stdout

	reaped   bool
	exitInfo ExitInfo

	readToken  *Token
	writeToken *Token

	registrar ReadinessRegistrar
}

func newExecContext(pid, inputFD, outputFD int, registrar ReadinessRegistrar) *ExecContext {
	ctx := &ExecContext{
		pid:      pid,
		inputFD:  inputFD,
		outputFD: outputFD,
	}
	ctx.readToken = newToken(outputFD, Read)
	ctx.writeToken = newToken(inputFD, Write)
	ctx.registrar = registrar

	// The handle's lifetime is tied to host GC (spec.md §3 "Lifecycle").
	// Drop must not leak kernel fds, but it must not reap the child
	// either -- that is the supervisor collaborator's job (spec.md §6).
	runtime.SetFinalizer(ctx, (*ExecContext).finalize)
	return ctx
}

// finalize runs when the last reference to the handle is dropped. It
// best-effort closes any fd that has not already been closed, matching
// spec.md §3's "drop closes any fd not already at PIPE_CLOSED". It does
// not wait on or signal the child.
func (c *ExecContext) finalize() {
	c.mu.Lock()
	inFD, outFD := c.inputFD, c.outputFD
	c.inputFD, c.outputFD = PipeClosed, PipeClosed
	c.mu.Unlock()

	if inFD != PipeClosed {
		_ = closeFD(inFD)
	}
	if outFD != PipeClosed {
		_ = closeFD(outFD)
	}
}

// Pid returns the child's process id, or 0 once it has been reaped
// (spec.md §4.5 os_pid).
func (c *ExecContext) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pid == CmdExit {
		return 0
	}
	return c.pid
}

// InputFD returns the parent-side writable stdin fd, or PipeClosed.
func (c *ExecContext) InputFD() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputFD
}

// OutputFD returns the parent-side readable stdout fd, or PipeClosed.
func (c *ExecContext) OutputFD() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputFD
}

// ReadReady returns a channel that closes the next time read readiness
// fires on this handle; if no read readiness is armed, the channel is
// already closed. It is how a collaborator outside this package
// (package stream, or a host's own scheduler integration) waits out an
// ErrWouldBlock from Read without reaching into the handle's internals.
func (c *ExecContext) ReadReady() <-chan struct{} {
	c.mu.Lock()
	tok := c.readToken
	c.mu.Unlock()
	return tok.Wait()
}

// WriteReady is ReadReady for the write direction.
func (c *ExecContext) WriteReady() <-chan struct{} {
	c.mu.Lock()
	tok := c.writeToken
	c.mu.Unlock()
	return tok.Wait()
}
