// Package procerr renders exit and signal status the way a host or
// CLI reports it to a human, grounded on orospakr/spawnexec's
// ProcessState.String().
package procerr

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nbexec/nbexec"
)

// Describe renders an nbexec.ExitInfo the way ProcessState.String does
// in the teacher package: "exit status N" or "signal: NAME".
func Describe(info nbexec.ExitInfo) string {
	switch info.Type {
	case nbexec.ExitNormal:
		if info.Status == 0 {
			return "exit status 0"
		}
		return fmt.Sprintf("exit status %d", info.Status)
	case nbexec.ExitSignaled:
		return "signal: " + unix.Signal(info.Status).String()
	case nbexec.ExitStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown status: %+v", info)
	}
}

// ExitCode maps an ExitInfo to the shell-style exit code a wrapping
// process would propagate: the raw exit status when the child exited
// normally, or 128+signal when it was killed by a signal, matching the
// POSIX convention most shells and init systems use.
func ExitCode(info nbexec.ExitInfo) int {
	switch info.Type {
	case nbexec.ExitNormal:
		return info.Status
	case nbexec.ExitSignaled:
		return 128 + info.Status
	default:
		return nbexec.ForkExecFailure
	}
}
