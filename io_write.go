package nbexec

import "golang.org/x/sys/unix"

// Write issues a single non-blocking write(2) against the handle's input
// fd (spec.md §4.2). bytes must be non-empty.
//
// On a full write, it returns (len(bytes), nil) with no side effect. On
// a short write (0 ≤ n < len(bytes), err == nil) it is still a success:
// it returns (n, nil), arming write readiness on the handle's write
// token purely as a side effect for the caller's *next* call. Only an
// EAGAIN/EWOULDBLOCK is reported as ErrWouldBlock, also arming write
// readiness. On any other errno it returns an *OSError and does not arm
// anything.
func Write(c *ExecContext, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrBadArgument
	}

	c.mu.Lock()
	fd := c.inputFD
	registrar := c.registrar
	tok := c.writeToken
	c.mu.Unlock()

	if fd == PipeClosed {
		return 0, ErrPipeClosed
	}

	n, err := unix.Write(fd, data)
	if n < 0 {
		n = 0
	}
	if err == nil {
		if n == len(data) {
			return n, nil
		}
		// 0 ≤ n < len(data): a successful (possibly empty) short
		// write. Arm readiness for the next call as a side effect,
		// but this call itself succeeded.
		if armErr := arm(registrar, tok); armErr != nil {
			return n, osError("arm(write)", armErr)
		}
		return n, nil
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		if armErr := arm(registrar, tok); armErr != nil {
			return 0, osError("arm(write)", armErr)
		}
		return 0, ErrWouldBlock
	}

	return 0, osError("write", err)
}
