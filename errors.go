package nbexec

import (
	"errors"
	"fmt"
)

// ErrBadArgument reports argument misuse: wrong arity, an empty write
// buffer, a non-positive read request other than UnbufferedRead, or an
// invalid direction passed to Close. It is never recoverable by the
// caller retrying the same call.
var ErrBadArgument = errors.New("nbexec: bad argument")

// ErrPipeClosed reports that an operation was issued against a direction
// that has already been closed with Close. It is terminal for that
// direction.
var ErrPipeClosed = errors.New("nbexec: pipe closed")

// ErrWouldBlock reports that a non-blocking read or write could not
// complete immediately. A readiness registration has already been armed
// on the handle's token for the relevant direction; the caller must wait
// for that event before retrying. The one exception is Read with
// UnbufferedRead, which reports ErrWouldBlock without arming anything.
var ErrWouldBlock = errors.New("nbexec: would block")

// OSError wraps a non-recoverable errno surfaced by read, write, close,
// kill, a readiness arm/disarm, or the pre-exec pipe/fcntl/fork path. It
// is never auto-retried. waitpid failures are reported as *WaitError.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("nbexec: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

func osError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OSError{Op: op, Err: err}
}

// WaitError reports any waitpid result other than "child reaped": Pid is
// 0 while the child is still running (waitpid returning 0), -1 when
// waitpid itself failed, or the unexpected pid it returned. It wraps the
// raw pid/status pair spec.md §4.5 calls error({wpid, status}).
type WaitError struct {
	Pid    int
	Status int
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("nbexec: wait: unexpected waitpid result (pid=%d status=%d)", e.Pid, e.Status)
}
