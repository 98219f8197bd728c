//go:build linux

package nbexec

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// pipePair wraps the two ends of a pipe2(2) pipe. This mirrors the
// minimal pipe(2)/pipe2(2) wrapper in the retrieved pipe package
// (other_examples: perazaharmonics-Go-Use-a-Kernel/pipe), adapted to
// take flags directly instead of exposing raw SYS_PIPE2 to callers.
type pipePair struct {
	r, w int
}

func newPipe2(flags int) (pipePair, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], flags); err != nil {
		return pipePair{}, err
	}
	return pipePair{r: fds[0], w: fds[1]}, nil
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

// setNonblockCloexec arms O_NONBLOCK|O_CLOEXEC on an already-open fd via
// fcntl, used for the parent-side pipe ends per spec.md §4.1 step 2.
func setNonblockCloexec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		return err
	}
	return nil
}

// bytesFromStrings converts a []string to a slice of pointers to
// NUL-terminated byte arrays (the last one nil), matching the layout
// execve(2) wants for argv/envp. This must run entirely before fork:
// nothing in the forked child is allowed to allocate. Each *byte keeps
// its backing array alive for as long as the pointer is reachable, so
// no separate storage slice needs to be threaded through.
func bytesFromStrings(ss []string) []*byte {
	ptrs := make([]*byte, len(ss)+1)
	for i, s := range ss {
		b := make([]byte, len(s)+1)
		copy(b, s)
		ptrs[i] = &b[0]
	}
	ptrs[len(ss)] = nil
	return ptrs
}

func bytePtrPtr(ptrs []*byte) **byte {
	if len(ptrs) == 0 {
		return nil
	}
	return (**byte)(unsafe.Pointer(&ptrs[0]))
}

// rawClose is safe to call after fork: it is a direct syscall with no
// allocation.
func rawClose(fd int) {
	unix.RawSyscall(unix.SYS_CLOSE, uintptr(fd), 0, 0)
}

// rawCloseRange closes every fd from lowFD upward, preferring the
// close_range(2) syscall (Linux 5.9+) with no upper bound and falling
// back to a per-fd loop bounded by maxFD otherwise. Both paths are async-signal-safe: no
// allocation, no libc, a single syscall (or a tight loop of one).
// spec.md §4.1 explains the rationale for a bounded loop over walking
// /proc/self/fd.
func rawCloseRange(lowFD, maxFD int) {
	_, _, errno := unix.RawSyscall(unix.SYS_CLOSE_RANGE, uintptr(lowFD), ^uintptr(0), 0)
	if errno == 0 {
		return
	}
	for fd := lowFD; fd <= maxFD; fd++ {
		unix.RawSyscall(unix.SYS_CLOSE, uintptr(fd), 0, 0)
	}
}

// rawDup2 duplicates oldfd onto newfd, retrying on EINTR the way
// dup(2) family calls on Linux can spuriously report it for fds
// undergoing concurrent close in another thread. It goes through
// dup3(2) (SYS_DUP2 does not exist on arm64's syscall table, only on
// legacy architectures) with a zero flags argument, which is dup2's
// exact behavior except for rejecting oldfd == newfd; that case never
// arises here since stdin/stdout/stderr targets are always < 3 and the
// pipe fds being duped onto them are always >= 3. Safe post-fork:
// single-purpose raw syscall, no allocation.
func rawDup2(oldfd, newfd int) bool {
	for {
		_, _, errno := unix.RawSyscall(unix.SYS_DUP3, uintptr(oldfd), uintptr(newfd), 0)
		if errno == 0 {
			return true
		}
		if errno == unix.EINTR {
			continue
		}
		return false
	}
}

// rawChdir is the post-fork, allocation-free equivalent of unix.Chdir.
func rawChdir(path *byte) bool {
	_, _, errno := unix.RawSyscall(unix.SYS_CHDIR, uintptr(unsafe.Pointer(path)), 0, 0)
	return errno == 0
}

// rawOpen is the post-fork, allocation-free equivalent of unix.Open. It
// goes through openat(2) with AT_FDCWD (SYS_OPEN does not exist on
// arm64's syscall table, only on legacy architectures); AT_FDCWD plus
// an absolute path behaves exactly like open(2).
func rawOpen(path *byte, flags int, mode uint32) (int, bool) {
	fd, _, errno := unix.RawSyscall6(unix.SYS_OPENAT, uintptr(unix.AT_FDCWD), uintptr(unsafe.Pointer(path)), uintptr(flags), uintptr(mode), 0, 0)
	if errno != 0 {
		return -1, false
	}
	return int(fd), true
}

// rawExecve is the post-fork, allocation-free equivalent of unix.Exec.
func rawExecve(path *byte, argv, envp **byte) unix.Errno {
	_, _, errno := unix.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(path)), uintptr(unsafe.Pointer(argv)), uintptr(unsafe.Pointer(envp)))
	return errno
}

// rawExitGroup terminates the calling process immediately with code,
// bypassing any Go runtime teardown (finalizers, deferred closures): the
// forked child is a raw copy of the parent's address space and must
// never run ordinary Go cleanup machinery.
func rawExitGroup(code int) {
	unix.RawSyscall(unix.SYS_EXIT_GROUP, uintptr(code), 0, 0)
}

// rawFork forks the calling process via clone(2) with flags equivalent
// to a traditional fork(): no shared memory, no new namespace, deliver
// SIGCHLD to the parent on child exit. This is the standard
// clone-as-fork idiom and avoids the per-architecture availability gaps
// of the legacy SYS_FORK number (missing on arm64, present on amd64).
func rawFork() (pid int, errno unix.Errno) {
	r, _, e := unix.RawSyscall6(unix.SYS_CLONE, uintptr(unix.SIGCHLD), 0, 0, 0, 0, 0)
	return int(r), e
}
