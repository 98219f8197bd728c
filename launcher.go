//go:build linux

package nbexec

import (
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// forkLock is syscall.ForkLock. Holding it serializes Execute against any
// other code in the process that creates file descriptors outside of
// this package, the same race exec_unix.go's ForkLock documents: without
// it, an fd opened by another goroutine between its creation and its
// FD_CLOEXEC being set could leak into a child forked concurrently. Every
// fd nbexec itself creates is marked O_CLOEXEC before this lock is ever
// taken, so only Execute needs to hold it, and only around the fork
// itself.
var forkLock = &syscall.ForkLock

const devNullPath = "/dev/null\x00"

// Execute forks and execs a child wired to two pipes: the parent writes
// the child's stdin through the returned handle's input fd and reads the
// child's stdout through its output fd. See spec.md §4.1 for the full
// contract.
//
// args must be non-empty; args[0] is used verbatim as the executable
// path (no $PATH search). env entries are passed as the child's
// environment verbatim. dir, if non-empty, is chdir'd to before exec.
func Execute(args, env []string, dir string, stderrMode StderrMode) (*ExecContext, error) {
	return ExecuteWith(DefaultRegistrar(), args, env, dir, stderrMode)
}

// ExecuteWith is Execute with an explicit ReadinessRegistrar, for hosts
// that supply their own epoll/kqueue/io_uring backend instead of the
// package default (spec.md §9).
func ExecuteWith(registrar ReadinessRegistrar, args, env []string, dir string, stderrMode StderrMode) (*ExecContext, error) {
	if len(args) == 0 {
		return nil, ErrBadArgument
	}

	stdinPipe, err := newPipe2(unix.O_CLOEXEC)
	if err != nil {
		return nil, osError("pipe(stdin)", err)
	}
	stdoutPipe, err := newPipe2(unix.O_CLOEXEC)
	if err != nil {
		_ = closeFD(stdinPipe.r)
		_ = closeFD(stdinPipe.w)
		return nil, osError("pipe(stdout)", err)
	}

	cleanupAll := func() {
		_ = closeFD(stdinPipe.r)
		_ = closeFD(stdinPipe.w)
		_ = closeFD(stdoutPipe.r)
		_ = closeFD(stdoutPipe.w)
	}

	// Parent-side ends: non-blocking, close-on-exec (spec.md §4.1 step 2).
	if err := setNonblockCloexec(stdinPipe.w); err != nil {
		cleanupAll()
		return nil, osError("fcntl(stdin write end)", err)
	}
	if err := setNonblockCloexec(stdoutPipe.r); err != nil {
		cleanupAll()
		return nil, osError("fcntl(stdout read end)", err)
	}

	// Everything below this point must be ready to hand to the child
	// without further allocation, because nothing after rawFork() in the
	// child branch may allocate.
	pathPtr := bytesFromStrings([]string{args[0]})[0]
	argvPtrs := bytesFromStrings(args)
	envPtrs := bytesFromStrings(env)

	var dirPtr *byte
	var dirStorage []byte
	if dir != "" {
		dirStorage = append([]byte(dir), 0)
		dirPtr = &dirStorage[0]
	}

	var devNullStorage = []byte(devNullPath)
	devNullPtr := &devNullStorage[0]

	rlim, err := getMaxFD()
	if err != nil {
		cleanupAll()
		return nil, osError("getrlimit(NOFILE)", err)
	}

	child := childSpec{
		path:          pathPtr,
		argv:          bytePtrPtr(argvPtrs),
		envp:          bytePtrPtr(envPtrs),
		dir:           dirPtr,
		discardStderr: stderrMode == StderrDiscard,
		devNull:       devNullPtr,
		stdinRead:     stdinPipe.r,
		stdoutWrite:   stdoutPipe.w,
		maxFD:         rlim,
	}

	runtime.LockOSThread()
	forkLock.Lock()
	pid, errno := rawFork()
	if pid == 0 && errno == 0 {
		// Child. Never return from here.
		forkAndExecChild(child)
		panic("unreachable: forkAndExecChild returned")
	}
	forkLock.Unlock()
	runtime.UnlockOSThread()

	// Parent closes the child-side ends regardless of fork outcome.
	_ = closeFD(stdinPipe.r)
	_ = closeFD(stdoutPipe.w)

	if errno != 0 {
		_ = closeFD(stdinPipe.w)
		_ = closeFD(stdoutPipe.r)
		return nil, osError("fork", errno)
	}

	ctx := newExecContext(pid, stdinPipe.w, stdoutPipe.r, registrar)
	return ctx, nil
}

// childSpec carries every value the forked child needs, fully prepared
// (allocated, null-terminated) before fork so the child path can run
// without touching the Go allocator.
type childSpec struct {
	path          *byte
	argv          **byte
	envp          **byte
	dir           *byte
	discardStderr bool
	devNull       *byte
	stdinRead     int
	stdoutWrite   int
	maxFD         int
}

// forkAndExecChild is the async-signal-safe child path (spec.md §4.1).
// It must not allocate, must not call into any Go runtime facility other
// than raw syscalls, and must terminate the process (either via execve
// succeeding, which replaces the address space, or via rawExitGroup on
// any failure). It never returns.
func forkAndExecChild(c childSpec) {
	if c.dir != nil {
		if !rawChdir(c.dir) {
			rawExitGroup(ForkExecFailure)
		}
	}

	if !rawDup2(c.stdinRead, 0) {
		rawExitGroup(ForkExecFailure)
	}
	if !rawDup2(c.stdoutWrite, 1) {
		rawExitGroup(ForkExecFailure)
	}
	if c.stdinRead > 2 {
		rawClose(c.stdinRead)
	}
	if c.stdoutWrite > 2 {
		rawClose(c.stdoutWrite)
	}

	if c.discardStderr {
		fd, ok := rawOpen(c.devNull, unix.O_WRONLY, 0)
		if !ok {
			rawExitGroup(ForkExecFailure)
		}
		if !rawDup2(fd, 2) {
			rawExitGroup(ForkExecFailure)
		}
		if fd > 2 {
			rawClose(fd)
		}
	}

	rawCloseRange(3, c.maxFD)

	rawExecve(c.path, c.argv, c.envp)
	// execve only returns on failure.
	rawExitGroup(ForkExecFailure)
}

func getMaxFD() (int, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	max := rlim.Cur
	// Cur may be unix.RLIM_INFINITY on some systems; fall back to a
	// generous bound rather than looping close() into the billions.
	if max > 1<<20 || max == 0 {
		max = 1 << 16
	}
	return int(max), nil
}
