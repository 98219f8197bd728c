package nbexec

import "golang.org/x/sys/unix"

// Read issues a single non-blocking read(2) against the handle's output
// fd (spec.md §4.3).
//
// request is either UnbufferedRead ("return whatever is available up to
// the pipe buffer size, never rearming readiness") or a positive upper
// bound on the number of bytes to return; the effective size is
// min(request, PipeBufSize).
//
// On EOF it returns (nil, nil). On a full read (n == effective size, or
// request was UnbufferedRead) it returns the bytes with no readiness
// side effect. On a short read (0 < n < request) it is still a success:
// it returns (bytes[0..n], nil), arming read readiness on the handle's
// read token purely as a side effect for the caller's *next* call. Only
// an EAGAIN/EWOULDBLOCK with zero bytes produced is reported as
// ErrWouldBlock; UnbufferedRead never arms.
func Read(c *ExecContext, request int) ([]byte, error) {
	if request != UnbufferedRead && request < 1 {
		return nil, ErrBadArgument
	}

	c.mu.Lock()
	fd := c.outputFD
	registrar := c.registrar
	tok := c.readToken
	c.mu.Unlock()

	if fd == PipeClosed {
		return nil, ErrPipeClosed
	}

	size := request
	if request == UnbufferedRead || request > PipeBufSize {
		size = PipeBufSize
	}

	buf := make([]byte, size)
	n, err := unix.Read(fd, buf)

	if err == nil {
		if n == 0 {
			return nil, nil // EOF
		}
		if n == size || request == UnbufferedRead {
			return buf[:n], nil
		}
		// 0 < n < request: a successful short read. Arm readiness for
		// the next call as a side effect, but this call itself succeeded
		// and its bytes must not be discarded.
		if armErr := arm(registrar, tok); armErr != nil {
			return buf[:n], osError("arm(read)", armErr)
		}
		return buf[:n], nil
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		if request == UnbufferedRead {
			return nil, ErrWouldBlock
		}
		if armErr := arm(registrar, tok); armErr != nil {
			return nil, osError("arm(read)", armErr)
		}
		return nil, ErrWouldBlock
	}

	return nil, osError("read", err)
}
