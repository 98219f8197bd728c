package nbexec

// Sentinel constants shared by the launcher, the handle, and the I/O
// operations. Names follow the vocabulary of spec.md's data model so a
// caller can cross-reference this package against that document.
const (
	// PipeBufSize is the maximum number of bytes a single Read call will
	// ever return.
	PipeBufSize = 65535

	// UnbufferedRead requested as the Read size means "return whatever is
	// already available, without rearming read readiness."
	UnbufferedRead = -1

	// PipeClosed marks an fd slot (InputFD/OutputFD) that has been closed
	// from the parent side.
	PipeClosed = -1

	// CmdExit marks ExecContext.pid once the child has been reaped.
	CmdExit = -1

	// ForkExecFailure is the exit code the child process uses via _exit
	// when it hits any error between fork and execve. It is not reserved
	// by UNIX exit-code convention; a real program that itself exits 125
	// is indistinguishable from a pre-exec failure without a dedicated
	// signalling pipe, which this design deliberately omits (spec.md §9).
	ForkExecFailure = 125
)

// StderrMode selects what the child's stderr is connected to.
type StderrMode int

const (
	// StderrInherit connects the child's stderr to the parent's stderr.
	StderrInherit StderrMode = iota
	// StderrDiscard connects the child's stderr to /dev/null.
	StderrDiscard
)
