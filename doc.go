// Package nbexec runs external OS processes under strict demand-driven,
// back-pressured I/O: a producer blocks when its consumer is slow, and a
// consumer blocks when no output is available, without ever making a
// blocking syscall on the calling goroutine.
//
// Execute forks and execs a child wired to two pipes and returns an
// ExecContext handle. Write, Read, and Close perform single non-blocking
// syscalls against that handle's fds; when one cannot complete
// immediately, it arms a per-direction readiness Token and returns
// ErrWouldBlock (Read with UnbufferedRead returns ErrWouldBlock without
// arming). A ReadinessRegistrar (an epoll-backed default is
// provided) delivers the wake-up when the fd becomes ready. Wait,
// Terminate, Kill, and Alive manage the child's lifecycle.
//
// This package is the low-level, non-blocking surface. Higher-level,
// blocking-looking helpers for ordinary goroutine-based programs live in
// the sibling stream, input, and supervisor packages.
package nbexec
