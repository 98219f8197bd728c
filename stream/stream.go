// Package stream adapts package nbexec's non-blocking core to the
// ordinary blocking io.Reader/io.Writer/io.Closer interfaces, for
// programs that run the engine from real goroutines rather than a
// cooperatively scheduled host. It is the "streaming wrapper" spec.md
// §1 and §6 name as an external collaborator of the core.
package stream

import (
	"context"
	"io"

	"github.com/nbexec/nbexec"
)

// Reader turns ExecContext's Read into a blocking io.Reader by waiting
// on the handle's read-readiness channel whenever Read reports
// ErrWouldBlock.
type Reader struct {
	ctx *nbexec.ExecContext
}

// NewReader wraps ctx for blocking consumption of its stdout.
func NewReader(ctx *nbexec.ExecContext) *Reader {
	return &Reader{ctx: ctx}
}

// Read implements io.Reader. It blocks until at least one byte is
// available, EOF is reached, or the underlying pipe is closed.
func (r *Reader) Read(p []byte) (int, error) {
	return r.ReadContext(context.Background(), p)
}

// ReadContext is Read with cancellation. If ctx is done before data
// arrives, it closes the handle's output fd (per spec.md §5's
// cancellation model: race a timer against the readiness event, then
// Close) and returns ctx.Err().
func (r *Reader) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	// A previous short read may have left read readiness armed; wait for
	// it before reading again (the channel is already closed otherwise).
	select {
	case <-r.ctx.ReadReady():
	case <-ctx.Done():
		_ = nbexec.Close(r.ctx, nbexec.Read)
		return 0, ctx.Err()
	}

	for {
		chunk, err := nbexec.Read(r.ctx, len(p))
		switch {
		case err == nil && chunk == nil:
			return 0, io.EOF
		case err == nil:
			return copy(p, chunk), nil
		case err == nbexec.ErrWouldBlock:
			select {
			case <-r.ctx.ReadReady():
				continue
			case <-ctx.Done():
				_ = nbexec.Close(r.ctx, nbexec.Read)
				return 0, ctx.Err()
			}
		default:
			return 0, err
		}
	}
}

// Close closes the wrapped handle's output fd.
func (r *Reader) Close() error {
	return nbexec.Close(r.ctx, nbexec.Read)
}

// Writer turns ExecContext's Write into a blocking io.Writer.
type Writer struct {
	ctx *nbexec.ExecContext
}

// NewWriter wraps ctx for blocking production of its stdin.
func NewWriter(ctx *nbexec.ExecContext) *Writer {
	return &Writer{ctx: ctx}
}

// Write implements io.Writer, looping Write until all of p has been
// accepted by the pipe.
func (w *Writer) Write(p []byte) (int, error) {
	return w.WriteContext(context.Background(), p)
}

// WriteContext is Write with cancellation, mirroring ReadContext.
func (w *Writer) WriteContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	for total < len(p) {
		remaining := len(p) - total
		n, err := nbexec.Write(w.ctx, p[total:])
		total += n
		switch {
		case err == nil && n == remaining:
			// full write of the remaining slice, no readiness armed
		case err == nil:
			// short write: already armed write-readiness as a side
			// effect, so wait for it before retrying the remainder
			fallthrough
		case err == nbexec.ErrWouldBlock:
			select {
			case <-w.ctx.WriteReady():
				continue
			case <-ctx.Done():
				_ = nbexec.Close(w.ctx, nbexec.Write)
				return total, ctx.Err()
			}
		default:
			return total, err
		}
	}
	return total, nil
}

// Close closes the wrapped handle's input fd, the designated way to
// signal end-of-input to the child (spec.md §4.4).
func (w *Writer) Close() error {
	return nbexec.Close(w.ctx, nbexec.Write)
}
