package nbexec

// Close closes one side of the handle's pipes (spec.md §4.4). which is
// Write to close the input fd (the designated way to signal end-of-input
// to the child) or Read to close the output fd.
//
// Close is idempotent: closing an already-closed side returns nil. It
// always cancels any outstanding readiness subscription on that
// direction's token before closing the fd, so a concurrent Read/Write
// waiting on that token observes the cancellation rather than a stale
// wake-up.
func Close(c *ExecContext, which Direction) error {
	c.mu.Lock()
	var fd *int
	var tok *Token
	switch which {
	case Write:
		fd = &c.inputFD
		tok = c.writeToken
	case Read:
		fd = &c.outputFD
		tok = c.readToken
	default:
		c.mu.Unlock()
		return ErrBadArgument
	}
	target := *fd
	registrar := c.registrar
	c.mu.Unlock()

	if target == PipeClosed {
		return nil
	}

	if err := disarm(registrar, tok); err != nil {
		return osError("disarm("+which.String()+")", err)
	}

	if err := closeFD(target); err != nil {
		return osError("close("+which.String()+")", err)
	}

	c.mu.Lock()
	*fd = PipeClosed
	c.mu.Unlock()

	// Wake anyone still waiting on the cancelled subscription; their
	// retry now sees ErrPipeClosed.
	tok.fire()

	return nil
}
